package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"

	"github.com/mogaika/skinned_mesh/animator"
	"github.com/mogaika/skinned_mesh/config"
	"github.com/mogaika/skinned_mesh/posescript"
	"github.com/mogaika/skinned_mesh/skeleton"
	"github.com/mogaika/skinned_mesh/utils"
	"github.com/mogaika/skinned_mesh/utils/fbxutils"
	"github.com/mogaika/skinned_mesh/utils/gltfutils"
	"github.com/mogaika/skinned_mesh/utils/objutils"
	"github.com/mogaika/skinned_mesh/web"
)

func main() {
	var cfgpath, addr, model, script, export, obj, fbxpath string
	var ticks, workers int
	var dt float64
	var dump, loop bool
	flag.StringVar(&cfgpath, "config", "", "Path to yaml config")
	flag.StringVar(&addr, "i", "", "Address of server (overrides config listen)")
	flag.StringVar(&model, "model", "", "Path to skinned gltf/glb model")
	flag.StringVar(&script, "script", "", "Path to pose script")
	flag.BoolVar(&loop, "loop", false, "Restart pose script when it ends")
	flag.IntVar(&workers, "workers", 0, "Goroutines used for vertex deformation")
	flag.StringVar(&export, "export", "", "Bake mode: write last frame to this .glb file")
	flag.StringVar(&obj, "obj", "", "Bake mode: write last frame to this .obj file")
	flag.StringVar(&fbxpath, "fbx", "", "Bake mode: write last frame and bone pose to this .fbx file")
	flag.IntVar(&ticks, "ticks", 1, "Bake mode: ticks to run before writing")
	flag.Float64Var(&dt, "dt", 1.0/30.0, "Bake mode: seconds per tick")
	flag.BoolVar(&dump, "dump", false, "Dump loaded bones")
	flag.Parse()

	cfg := config.Default()
	if cfgpath != "" {
		var err error
		if cfg, err = config.Load(cfgpath); err != nil {
			log.Fatal(err)
		}
	}
	if addr != "" {
		cfg.Listen = addr
	}
	if model != "" {
		cfg.Model = model
	}
	if script != "" {
		cfg.Script = script
	}
	if workers != 0 {
		cfg.Workers = workers
	}
	if err := cfg.Validate(); err != nil {
		log.Fatal(err)
	}
	if err := config.Set(cfg); err != nil {
		log.Fatal(err)
	}

	if cfg.Model == "" {
		flag.PrintDefaults()
		return
	}

	anim, md, err := load(loop, dump)
	if err != nil {
		log.Fatal(err)
	}

	if export != "" || obj != "" || fbxpath != "" {
		if err := bake(anim, md, ticks, float32(dt), export, obj, fbxpath); err != nil {
			log.Fatal(err)
		}
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	go func() {
		if err := anim.Run(ctx, cfg.TickRate); err != nil && !errors.Is(err, context.Canceled) {
			log.Fatal(err)
		}
	}()

	if err := web.StartServer(cfg.Listen, anim); err != nil {
		log.Fatal(err)
	}
}

func load(loop, dump bool) (*animator.Animator, *skeleton.MeshData, error) {
	cfg := config.Get()
	skeleton.WeightSumTolerance = cfg.WeightSumTolerance

	doc, err := gltfutils.Open(cfg.Model)
	if err != nil {
		return nil, nil, err
	}
	md, err := gltfutils.ReadSkinnedMesh(doc)
	if err != nil {
		return nil, nil, errors.Wrapf(err, "Model %q", cfg.Model)
	}

	skel, err := skeleton.Build(md)
	if err != nil {
		return nil, nil, errors.Wrapf(err, "Model %q", cfg.Model)
	}
	skel.SetWorkers(cfg.Workers)

	if dump {
		utils.LogDump(md.Bones)
		for _, b := range skel.Bones() {
			log.Println(b)
		}
	}

	var source animator.PoseSource
	if cfg.Script != "" {
		cmds, err := posescript.Load(cfg.Script)
		if err != nil {
			return nil, nil, err
		}
		driver := posescript.NewDriver(cmds)
		driver.Resolve = cfg.ResolveBone
		driver.Loop = loop
		source = driver
		log.Printf("[script] loaded %d statements from %q", len(cmds), cfg.Script)
	}

	anim := animator.New(skel, source)
	anim.SetResolver(cfg.ResolveBone)
	return anim, md, nil
}

func bake(anim *animator.Animator, md *skeleton.MeshData, ticks int, dt float32, export, obj, fbxpath string) error {
	for i := 0; i < ticks; i++ {
		if _, err := anim.Step(dt); err != nil {
			return err
		}
	}
	frame := anim.Frame()
	log.Printf("[animator] baked tick %d, bounds %v", frame.Tick, frame.Bounds)

	if export != "" {
		if err := writeFile(export, func(f *os.File) error {
			return gltfutils.ExportPosed(f, meshName(export), frame.Vertices, frame.Normals, md.Indices)
		}); err != nil {
			return err
		}
	}
	if obj != "" {
		if err := writeFile(obj, func(f *os.File) error {
			return objutils.ExportObj(f, meshName(obj), frame.Vertices, frame.Normals, md.Indices)
		}); err != nil {
			return err
		}
	}
	if fbxpath != "" {
		var err error
		anim.View(func(s *skeleton.Skeleton) {
			err = writeFile(fbxpath, func(f *os.File) error {
				return fbxutils.ExportPosed(f, meshName(fbxpath), frame.Vertices, frame.Normals, md.Indices, s.Bones())
			})
		})
		if err != nil {
			return err
		}
	}
	return nil
}

func meshName(path string) string {
	return strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
}

func writeFile(path string, write func(f *os.File) error) error {
	f, err := os.Create(path)
	if err != nil {
		return errors.Wrapf(err, "Failed to create %q", path)
	}
	defer f.Close()
	if err := write(f); err != nil {
		return errors.Wrapf(err, "Failed to write %q", path)
	}
	log.Printf("Written %q", path)
	return nil
}
