package cmd

import (
	"fmt"
	"os"

	"github.com/olekukonko/tablewriter"
	"github.com/pkg/errors"
	"github.com/urfave/cli"

	"github.com/meshfire/meshfire/mesh"
	"github.com/meshfire/meshfire/tracer"
	"github.com/meshfire/meshfire/tracer/hostrt"
	"github.com/meshfire/meshfire/tracer/opencl"
	"github.com/meshfire/meshfire/types"
)

// selectBackend builds the ray tracer named by the --backend flag.
func selectBackend(ctx *cli.Context) (tracer.RayTracer, error) {
	switch name := ctx.String("backend"); name {
	case "host":
		return hostrt.New(), nil
	case "opencl":
		return opencl.New(), nil
	default:
		return nil, errors.Errorf("unknown backend %q (expected host or opencl)", name)
	}
}

// FireRays registers the demo box volume and fires rays from its center
// through each face, printing the accepted hits.
func FireRays(ctx *cli.Context) error {
	setupLogging(ctx)

	rt, err := selectBackend(ctx)
	if err != nil {
		return err
	}
	if err = rt.Init(); err != nil {
		return err
	}
	defer rt.Close()

	mm := mesh.NewBoxMesh(types.Vec3{-2, -3, -4}, types.Vec3{5, 6, 7})
	volTree, _, err := rt.RegisterVolume(mm, mm.Volumes()[0])
	if err != nil {
		return err
	}

	logger.Noticef("firing rays with the %s backend", rt.Library())

	origin := mm.BoundingBox(0).Center()
	dirs := []types.Vec3{
		{1, 0, 0}, {-1, 0, 0},
		{0, 1, 0}, {0, -1, 0},
		{0, 0, 1}, {0, 0, -1},
	}

	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader([]string{"Direction", "Distance", "Surface"})
	for _, dir := range dirs {
		dist, surf := rt.RayFire(volTree, origin, dir, tracer.Infty, tracer.Exiting, nil)
		table.Append([]string{
			fmt.Sprintf("(%+.0f %+.0f %+.0f)", dir[0], dir[1], dir[2]),
			fmt.Sprintf("%.6f", dist),
			fmt.Sprintf("%d", surf),
		})
	}
	table.Render()

	return nil
}

// LocatePoints samples evenly spaced points along the diagonal of the demo
// box volume and reports the containing tetrahedron of each sample.
func LocatePoints(ctx *cli.Context) error {
	setupLogging(ctx)

	rt, err := selectBackend(ctx)
	if err != nil {
		return err
	}
	if err = rt.Init(); err != nil {
		return err
	}
	defer rt.Close()

	mm := mesh.NewBoxMesh(types.Vec3{-2, -3, -4}, types.Vec3{5, 6, 7})
	_, elemTree, err := rt.RegisterVolume(mm, mm.Volumes()[0])
	if err != nil {
		return err
	}
	if elemTree == tracer.TreeNone {
		return errors.New("demo mesh carries no volume elements")
	}

	box := mm.BoundingBox(0)
	steps := ctx.Int("steps")
	if steps < 2 {
		return errors.Errorf("invalid step count %d", steps)
	}

	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader([]string{"Point", "Element"})
	side := box.Max.Sub(box.Min)
	for i := 0; i < steps; i++ {
		frac := (float64(i) + 0.5) / float64(steps)
		p := box.Min.Add(side.Mul(frac))
		element := rt.FindElement(elemTree, p)
		table.Append([]string{
			fmt.Sprintf("(%.2f %.2f %.2f)", p[0], p[1], p[2]),
			fmt.Sprintf("%d", element),
		})
	}
	table.Render()

	return nil
}
