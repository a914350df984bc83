// Command missiondecomposer runs the full pipeline end to end against a
// small built-in scenario and writes the resulting iHTN trees to disk
// (spec.md §6). Parsing a real goal model/domain/config off disk is out of
// scope for the core (spec.md §1); this driver plays that "surrounding
// tooling" role with a hand-built fixture standing in for the parser's
// output, the way the teacher's root main.go stood up a runnable demo of
// agent.NewOpenAI rather than wiring a CLI flag parser.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"log/slog"
	"os"

	"github.com/joho/godotenv"

	"github.com/taipm/mission-decomposer/internal/annotation"
	"github.com/taipm/mission-decomposer/internal/atg"
	"github.com/taipm/mission-decomposer/internal/cache"
	"github.com/taipm/mission-decomposer/internal/config"
	"github.com/taipm/mission-decomposer/internal/constraints"
	"github.com/taipm/mission-decomposer/internal/contextcheck"
	"github.com/taipm/mission-decomposer/internal/goalmodel"
	"github.com/taipm/mission-decomposer/internal/ihtn"
	"github.com/taipm/mission-decomposer/internal/logging"
	"github.com/taipm/mission-decomposer/internal/missiongen"
	"github.com/taipm/mission-decomposer/internal/model"
	"github.com/taipm/mission-decomposer/internal/query"
	"github.com/taipm/mission-decomposer/internal/tdg"
	"github.com/taipm/mission-decomposer/internal/worldstate"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Printf("Warning: Error loading .env file: %v", err)
	}

	cfg, err := loadRunConfig()
	if err != nil {
		log.Fatalf("run config: %v", err)
	}

	logger := logging.NewSlogAdapter(slog.Default(), logging.ParseLevel(cfg.LogLevel))
	pathCache, err := newPathCache(cfg)
	if err != nil {
		log.Fatalf("path cache: %v", err)
	}

	ctx := context.Background()
	domain := deliveryDomain()
	gm := deliveryGoalModel()
	world := deliveryWorldState()

	trees, err := run(ctx, domain, gm, world, cfg, pathCache, logger)
	if err != nil {
		log.Fatalf("mission decomposer: %v", err)
	}

	for i, tr := range trees {
		k := i + 1 // ihtn.FileName is 1-based (spec.md §4.8/§6: "k = 1, 2, ...")
		raw, err := json.MarshalIndent(tr, "", "  ")
		if err != nil {
			log.Fatalf("marshal iHTN %d: %v", k, err)
		}
		name := ihtn.FileName(k)
		if err := os.WriteFile(name, raw, 0o644); err != nil {
			log.Fatalf("write %s: %v", name, err)
		}
		fmt.Printf("wrote %s (%d nodes)\n", name, len(tr.Nodes))
	}
}

func loadRunConfig() (*config.RunConfig, error) {
	if path := os.Getenv("MISSIONDECOMPOSER_CONFIG"); path != "" {
		return config.LoadWithEnvOverrides(path)
	}
	cfg := config.DefaultRunConfig()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func newPathCache(cfg *config.RunConfig) (cache.PathCache, error) {
	if cfg.Cache == config.CacheBackendRedis {
		return cache.NewRedisCache(cache.RedisCacheOptions{Addr: cfg.RedisAddr})
	}
	return cache.NewMemoryCache(0), nil
}

// run executes DomainTDG -> AnnotationEngine -> MissionDecomposer ->
// ConstraintManager -> ValidMissionGenerator -> iHTNLowering for every
// top-level task in domain, returning every lowered tree across every
// generated mission (spec.md §4, §5).
func run(ctx context.Context, domain model.Domain, gm *goalmodel.GoalModel, world *worldstate.State, cfg *config.RunConfig, pathCache cache.PathCache, logger logging.Logger) ([]*ihtn.Tree, error) {
	paths := make(map[string][]model.DecompositionPath, len(domain.TopLevelTasks))
	for _, taskName := range domain.TopLevelTasks {
		g, err := tdg.Build(domain, taskName)
		if err != nil {
			return nil, fmt.Errorf("building TDG for %q: %w", taskName, err)
		}
		p, err := tdg.Paths(ctx, g, world, pathCache)
		if err != nil {
			return nil, fmt.Errorf("enumerating paths for %q: %w", taskName, err)
		}
		paths[taskName] = p
	}

	resolver := query.NewResolver(query.NewTree())
	root, err := annotation.Build(gm, resolver)
	if err != nil {
		return nil, fmt.Errorf("building runtime annotation: %w", err)
	}
	annotation.Rename(root)

	atgGraph, err := atg.Build(atg.BuildInput{
		Annotation: root,
		Paths:      paths,
		Meta:       deliveryMeta(),
		Mappings:   deliverySemanticMappings(),
		World:      world,
	})
	if err != nil {
		return nil, fmt.Errorf("building ATG: %w", err)
	}

	cs := constraints.Derive(atgGraph)
	gen := missiongen.New(atgGraph, cs, cfg.MaxCandidatesPerOperatorNode, cfg.SearchTimeout, logger)
	missions, err := gen.Generate(world)
	if err != nil {
		return nil, fmt.Errorf("generating valid missions: %w", err)
	}

	var all []*ihtn.Tree
	for _, mission := range missions {
		trees, err := ihtn.Lower(mission, atgGraph, cs)
		if err != nil {
			return nil, fmt.Errorf("lowering mission: %w", err)
		}
		all = append(all, trees...)
	}
	return all, nil
}

// deliveryDomain is a minimal two-task planning domain: Load (effect
// loaded(box)) must precede Carry (precondition loaded(box)), mirroring
// spec.md §8 scenario 3.
func deliveryDomain() model.Domain {
	loaded := model.Predicate{Name: "loaded", Arity: 1, ArgSorts: []string{"item"}}

	loadTask := model.Task{Name: "load_box", Vars: []model.TypedVar{{Name: "r", Sort: "robot"}}, Effects: []model.Literal{{Predicate: loaded, Args: []string{"box"}, Positive: true}}}
	carryTask := model.Task{Name: "carry_box", Vars: []model.TypedVar{{Name: "r", Sort: "robot"}, {Name: "loc", Sort: "location"}}, Preconditions: []model.Literal{{Predicate: loaded, Args: []string{"box"}, Positive: true}}}

	loadAbstract := model.Task{
		Name: "Load", Abstract: true, Vars: []model.TypedVar{{Name: "r", Sort: "robot"}},
		Methods: []model.Method{{Name: "m_load", Vars: []model.TypedVar{{Name: "r", Sort: "robot"}}, SubtaskRefs: []model.SubtaskRef{{TaskName: "load_box", Args: []string{"r"}}}}},
	}
	carryAbstract := model.Task{
		Name: "Carry", Abstract: true, Vars: []model.TypedVar{{Name: "r", Sort: "robot"}, {Name: "loc", Sort: "location"}},
		Methods: []model.Method{{Name: "m_carry", Vars: []model.TypedVar{{Name: "r", Sort: "robot"}, {Name: "loc", Sort: "location"}}, SubtaskRefs: []model.SubtaskRef{{TaskName: "carry_box", Args: []string{"r", "loc"}}}}},
	}

	return model.Domain{
		Sorts:         map[string][]string{"robot": {"r1"}, "item": {"box"}, "location": {"kitchen"}},
		Predicates:    map[string]model.Predicate{"loaded": loaded},
		Tasks:         map[string]model.Task{"Load": loadAbstract, "Carry": carryAbstract, "load_box": loadTask, "carry_box": carryTask},
		TopLevelTasks: []string{"Load", "Carry"},
	}
}

// deliveryGoalModel builds: root (Achieve, rannot "Load;Carry") -> Load,
// Carry task leaves, matching deliveryDomain's top-level tasks.
func deliveryGoalModel() *goalmodel.GoalModel {
	gm := goalmodel.NewGoalModel("root")
	gm.Nodes["root"] = &goalmodel.Node{
		ID: "root", Type: goalmodel.NodeGoal,
		Goal:     &goalmodel.GoalNode{Kind: goalmodel.KindAchieve, Text: "deliver the box", Group: true, Divisible: true, Rannot: "Load;Carry"},
		Children: []string{"Load", "Carry"},
	}
	gm.Nodes["Load"] = &goalmodel.Node{ID: "Load", Type: goalmodel.NodeTask, ParentID: "root", Task: &goalmodel.TaskNode{Name: "Load"}}
	gm.Nodes["Carry"] = &goalmodel.Node{ID: "Carry", Type: goalmodel.NodeTask, ParentID: "root", Task: &goalmodel.TaskNode{Name: "Carry", Locations: []string{"kitchen"}}}
	return gm
}

func deliveryWorldState() *worldstate.State {
	return worldstate.New()
}

// deliveryMeta maps the annotation-renamed instance ids ("Load_0",
// "Carry_0": Rename's "<id>_<i>" convention applied to single-occurrence
// leaves) to the domain task and binding each decomposes.
func deliveryMeta() map[string]atg.TaskInstanceMeta {
	return map[string]atg.TaskInstanceMeta{
		"Load_0":  {DomainTask: "Load", VarBindings: map[string]string{"r": "r1"}},
		"Carry_0": {DomainTask: "Carry", Location: "kitchen", VarBindings: map[string]string{"r": "r1", "loc": "kitchen"}},
	}
}

func deliverySemanticMappings() []contextcheck.SemanticMapping {
	return nil
}
