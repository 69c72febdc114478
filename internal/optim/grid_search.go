package optim

import (
	"context"
	"fmt"
	"math"
	"runtime"
	"sort"

	"golang.org/x/sync/errgroup"

	"github.com/san-kum/spherique/internal/config"
	"github.com/san-kum/spherique/internal/sim"
)

// Params names the tunable config fields.
var Params = map[string]func(*config.Config, float64){
	"bounce_loss":       func(c *config.Config, v float64) { c.BounceLoss = v },
	"collision_damping": func(c *config.Config, v float64) { c.CollisionDamping = v },
	"gravity":           func(c *config.Config, v float64) { c.Gravity.Y = v },
	"spawn_speed":       func(c *config.Config, v float64) { c.SpawnSpeed = v },
	"substeps":          func(c *config.Config, v float64) { c.Substeps = int(v) },
}

// Point is one evaluated grid cell.
type Point struct {
	Params map[string]float64
	Value  float64
}

type GridSearch struct {
	paramNames []string
	ranges     [][]float64
}

func NewGridSearch(params []string, ranges [][]float64) (*GridSearch, error) {
	if len(params) != len(ranges) {
		return nil, fmt.Errorf("grid search: %d params but %d ranges", len(params), len(ranges))
	}
	for i, name := range params {
		if _, ok := Params[name]; !ok {
			return nil, fmt.Errorf("grid search: unknown param %q", name)
		}
		if len(ranges[i]) == 0 {
			return nil, fmt.Errorf("grid search: empty range for %q", name)
		}
	}
	return &GridSearch{paramNames: params, ranges: ranges}, nil
}

// Search runs base once per grid cell and returns every cell sorted by the
// named metric, lowest first, with NaN values last. Cells whose config fails
// validation are skipped.
func (g *GridSearch) Search(
	ctx context.Context,
	base config.Config,
	newMetrics func(config.Config) []sim.Metric,
	metricName string,
) ([]Point, error) {
	var cells []map[string]float64
	g.expand(0, map[string]float64{}, &cells)

	values := make([]float64, len(cells))
	skipped := make([]bool, len(cells))
	grp, ctx := errgroup.WithContext(ctx)
	grp.SetLimit(runtime.NumCPU())
	for i, cell := range cells {
		grp.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}

			cfg := base
			for name, v := range cell {
				Params[name](&cfg, v)
			}

			s, err := sim.New(cfg)
			if err != nil {
				skipped[i] = true
				return nil
			}
			for _, m := range newMetrics(cfg) {
				s.AddMetric(m)
			}

			val, ok := s.Run().Metrics[metricName]
			if !ok {
				return fmt.Errorf("grid search: run has no metric %q", metricName)
			}
			values[i] = val
			return nil
		})
	}
	if err := grp.Wait(); err != nil {
		return nil, err
	}

	points := make([]Point, 0, len(cells))
	for i, cell := range cells {
		if skipped[i] {
			continue
		}
		points = append(points, Point{Params: cell, Value: values[i]})
	}
	sort.SliceStable(points, func(a, b int) bool { return less(points[a].Value, points[b].Value) })
	return points, nil
}

func (g *GridSearch) expand(depth int, current map[string]float64, out *[]map[string]float64) {
	if depth == len(g.paramNames) {
		*out = append(*out, current)
		return
	}

	paramName := g.paramNames[depth]
	for _, val := range g.ranges[depth] {
		next := make(map[string]float64, len(current)+1)
		for k, v := range current {
			next[k] = v
		}
		next[paramName] = val
		g.expand(depth+1, next, out)
	}
}

func less(a, b float64) bool {
	if math.IsNaN(a) {
		return false
	}
	return math.IsNaN(b) || a < b
}
