package service_test

import (
	"context"
	"errors"
	"fmt"
	"image"
	"image/png"
	"os"
	"path/filepath"
	"testing"
	"time"

	service "github.com/aquametrics/shrimpd/internal/app"
	"github.com/aquametrics/shrimpd/internal/domain/model"
	"github.com/aquametrics/shrimpd/internal/domain/status"
	"github.com/aquametrics/shrimpd/pkg/logger"
	. "github.com/smartystreets/goconvey/convey"
)

func init() {
	// Initialize logging for tests
	err := logger.Init()
	if err != nil {
		panic(err)
	}
}

// testEnv holds the directory layout for one service under test.
type testEnv struct {
	uploads     string
	annotations string
	dataset     string
	models      string
}

func newTestEnv(t *testing.T) testEnv {
	t.Helper()
	return testEnv{
		uploads:     t.TempDir(),
		annotations: t.TempDir(),
		dataset:     t.TempDir(),
		models:      t.TempDir(),
	}
}

// seedSamples writes n annotated sample images into the environment.
func seedSamples(t *testing.T, e testEnv, svc *service.Service, n int) {
	t.Helper()
	ctx := context.Background()

	for i := 0; i < n; i++ {
		name := fmt.Sprintf("shrimp_%03d.png", i)
		f, err := os.Create(filepath.Join(e.uploads, name))
		if err != nil {
			t.Fatalf("creating image: %v", err)
		}
		if err := png.Encode(f, image.NewRGBA(image.Rect(0, 0, 100, 100))); err != nil {
			t.Fatalf("encoding image: %v", err)
		}
		_ = f.Close()

		ann := model.Annotation{
			ImageName: name,
			Regions:   []model.Region{{ClassID: 0, X: 10, Y: 10, Width: 30, Height: 30}},
		}
		if err := svc.SaveAnnotation(ctx, ann); err != nil {
			t.Fatalf("saving annotation: %v", err)
		}
	}
}

// writeTrainer writes a fake trainer script.
func writeTrainer(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "trainer.sh")
	if err := os.WriteFile(path, []byte("#!/bin/sh\n"+body), 0o755); err != nil {
		t.Fatalf("writing trainer script: %v", err)
	}
	return path
}

func newTestService(t *testing.T, e testEnv, trainer string) *service.Service {
	t.Helper()
	svc := service.New(
		service.WithDataDirs(e.uploads, e.annotations, e.dataset, e.models),
		service.WithTrainerCommand(trainer),
		service.WithMinAnnotatedSamples(5),
		service.WithMinArtifactBytes(10),
		service.WithTrainingDefaults(model.TrainingConfig{
			ModelVariant: "yolov8n",
			Epochs:       3,
			BatchSize:    2,
			ImageSize:    64,
			LearningRate: 0.01,
			TrainSplit:   0.8,
			ValSplit:     0.2,
		}),
	)
	if err := svc.Start(context.Background()); err != nil {
		t.Fatalf("starting service: %v", err)
	}
	t.Cleanup(svc.Stop)
	return svc
}

func TestServiceLifecycle(t *testing.T) {
	Convey("Given a started service", t, func() {
		e := newTestEnv(t)
		svc := newTestService(t, e, "/bin/true")

		Convey("Then it should report idle status", func() {
			So(svc.GetStatus().Status, ShouldEqual, model.StatusIdle)
		})

		Convey("Then stats should be populated", func() {
			stats := svc.GetStats()
			So(stats["started"], ShouldBeTrue)
			So(stats["status"], ShouldEqual, "idle")
			So(stats["annotated_samples"], ShouldEqual, 0)
		})

		Convey("Then starting again should be a no-op", func() {
			So(svc.Start(context.Background()), ShouldBeNil)
		})
	})
}

func TestStartTrainingPreconditions(t *testing.T) {
	Convey("Given a service with too few annotated samples", t, func() {
		ctx := context.Background()
		e := newTestEnv(t)
		svc := newTestService(t, e, "/bin/true")
		seedSamples(t, e, svc, 3)

		Convey("When starting training", func() {
			_, _, err := svc.StartTraining(ctx, model.TrainingConfig{})

			Convey("Then it should be rejected for insufficient samples", func() {
				So(errors.Is(err, service.ErrInsufficientSamples), ShouldBeTrue)
				So(svc.GetStatus().Status, ShouldEqual, model.StatusIdle)
			})
		})
	})

	Convey("Given a service with a long-running trainer", t, func() {
		ctx := context.Background()
		e := newTestEnv(t)
		trainer := writeTrainer(t, "sleep 10\n")
		svc := newTestService(t, e, trainer)
		seedSamples(t, e, svc, 5)

		Convey("When starting training twice", func() {
			cfg, snap, err := svc.StartTraining(ctx, model.TrainingConfig{})
			So(err, ShouldBeNil)
			So(cfg.Epochs, ShouldEqual, 3)
			So(snap.Status, ShouldEqual, model.StatusPreparing)

			_, _, err = svc.StartTraining(ctx, model.TrainingConfig{})

			Convey("Then the second start should be rejected without mutating state", func() {
				So(errors.Is(err, status.ErrAlreadyActive), ShouldBeTrue)
				So(svc.GetStatus().Status.Active(), ShouldBeTrue)
			})

			So(svc.StopTraining(ctx), ShouldBeNil)
		})

		Convey("When passing an invalid config", func() {
			_, _, err := svc.StartTraining(ctx, model.TrainingConfig{TrainSplit: 0.9, ValSplit: 0.5})

			Convey("Then it should be rejected synchronously", func() {
				So(err, ShouldNotBeNil)
				So(svc.GetStatus().Status, ShouldEqual, model.StatusIdle)
			})
		})
	})
}

func TestStopTraining(t *testing.T) {
	Convey("Given a service with an active run", t, func() {
		ctx := context.Background()
		e := newTestEnv(t)
		trainer := writeTrainer(t, "echo \"Epoch 1/3\"\nsleep 10\n")
		svc := newTestService(t, e, trainer)
		seedSamples(t, e, svc, 5)

		_, _, err := svc.StartTraining(ctx, model.TrainingConfig{})
		So(err, ShouldBeNil)

		Convey("When stopping the run", func() {
			So(svc.StopTraining(ctx), ShouldBeNil)

			Convey("Then status should return to idle, not failed", func() {
				// Give the run goroutine a moment to observe the kill.
				time.Sleep(200 * time.Millisecond)
				So(svc.GetStatus().Status, ShouldEqual, model.StatusIdle)
			})

			Convey("And stopping again should report no active run", func() {
				err := svc.StopTraining(ctx)
				So(errors.Is(err, status.ErrNoActiveRun), ShouldBeTrue)
			})

			Convey("And a new run should be accepted once the worker is released", func() {
				for i := 0; i < 100 && svc.GetStatus().Status != model.StatusIdle; i++ {
					time.Sleep(50 * time.Millisecond)
				}
				So(svc.GetStatus().Status, ShouldEqual, model.StatusIdle)

				_, snap, err := svc.StartTraining(ctx, model.TrainingConfig{})
				So(err, ShouldBeNil)
				So(snap.Status, ShouldEqual, model.StatusPreparing)
				So(svc.StopTraining(ctx), ShouldBeNil)
			})
		})
	})

	Convey("Given an idle service", t, func() {
		e := newTestEnv(t)
		svc := newTestService(t, e, "/bin/true")

		Convey("When stopping with no run active", func() {
			err := svc.StopTraining(context.Background())

			Convey("Then it should report no active run", func() {
				So(errors.Is(err, status.ErrNoActiveRun), ShouldBeTrue)
			})
		})
	})
}

func TestServiceOptions(t *testing.T) {
	Convey("Given a started service with seeded samples", t, func() {
		ctx := context.Background()
		e := newTestEnv(t)
		svc := newTestService(t, e, "/bin/true")
		seedSamples(t, e, svc, 5)

		Convey("When fetching training options", func() {
			opts := svc.Options(ctx)

			Convey("Then defaults and counts should be populated", func() {
				So(opts.ModelVariants, ShouldContain, "yolov8n")
				So(opts.Variants, ShouldHaveLength, 3)
				So(opts.Defaults.Epochs, ShouldEqual, 3)
				So(opts.MinSamples, ShouldEqual, 5)
				So(opts.AnnotatedSamples, ShouldEqual, 5)
			})

			Convey("Then the smallest variant should be recommended for a small dataset", func() {
				So(opts.Recommended, ShouldEqual, "yolov8n")
			})
		})

		Convey("When listing annotations and images", func() {
			anns, err := svc.ListAnnotations(ctx)
			So(err, ShouldBeNil)
			imgs, err := svc.ListImages(ctx)
			So(err, ShouldBeNil)

			Convey("Then the seeded samples should appear", func() {
				So(anns, ShouldHaveLength, 5)
				So(imgs, ShouldHaveLength, 5)
			})
		})

		Convey("When reading back one annotation", func() {
			ann, err := svc.GetAnnotation(ctx, "shrimp_000.png")

			Convey("Then its regions should round-trip", func() {
				So(err, ShouldBeNil)
				So(ann.Regions, ShouldHaveLength, 1)
			})
		})

		Convey("When listing models with none trained", func() {
			models, err := svc.ListModels(ctx)

			Convey("Then the list should be empty", func() {
				So(err, ShouldBeNil)
				So(models, ShouldBeEmpty)
			})
		})
	})
}
