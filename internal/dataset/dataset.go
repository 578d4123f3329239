// Package dataset stages annotated samples into train/validation splits and
// writes the descriptor file the training worker consumes.
package dataset

import (
	"context"
	"fmt"
	"io"
	"math"
	"math/rand"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	repository "github.com/aquametrics/shrimpd/internal/adapters/repository"
	model "github.com/aquametrics/shrimpd/internal/domain/model"
	"github.com/aquametrics/shrimpd/pkg/logger"
	"github.com/aquametrics/shrimpd/pkg/metrics"
)

// Dataset layout constants.
const (
	trainDirName   = "train"
	valDirName     = "val"
	imagesSubdir   = "images"
	labelsSubdir   = "labels"
	descriptorName = "dataset.yaml"
	labelExt       = ".txt"
	dirPerm        = 0o755
	filePerm       = 0o644
)

// Default class taxonomy for the single-class shrimp detector.
var defaultClassNames = []string{"shrimp"}

// ProgressFunc receives staging progress as a fraction in [0,1] plus a
// human-readable message.
type ProgressFunc func(fraction float64, message string)

// Option applies a configuration option to the Preparer.
type Option func(*Preparer)

// WithClassNames overrides the class taxonomy. Order matches class-id
// assignment.
func WithClassNames(names []string) Option {
	return func(p *Preparer) {
		if len(names) > 0 {
			p.classNames = names
		}
	}
}

// WithProgressFunc registers a staging progress callback.
func WithProgressFunc(fn ProgressFunc) Option {
	return func(p *Preparer) {
		if fn != nil {
			p.progress = fn
		}
	}
}

// WithLogger sets a custom logger for the preparer.
func WithLogger(log logger.Logger) Option {
	return func(p *Preparer) {
		if log != nil {
			p.log = log
		}
	}
}

// Preparer builds a fresh dataset staging area from the annotation and
// image stores.
type Preparer struct {
	annotations repository.AnnotationStore
	images      repository.ImageStore
	root        string
	classNames  []string
	progress    ProgressFunc
	log         logger.Logger
}

// NewPreparer creates a dataset preparer rooted at root.
func NewPreparer(annotations repository.AnnotationStore, images repository.ImageStore, root string, opts ...Option) *Preparer {
	p := &Preparer{
		annotations: annotations,
		images:      images,
		root:        root,
		classNames:  defaultClassNames,
		progress:    func(float64, string) {},
		log:         logger.Get().Named("dataset"),
	}

	for _, opt := range opts {
		opt(p)
	}

	return p
}

// Prepare clears previously staged splits, partitions qualifying samples,
// copies images, writes label files, and emits the descriptor. Returns no
// descriptor if zero samples qualify.
func (p *Preparer) Prepare(ctx context.Context, trainSplit, valSplit float64) (*model.DatasetDescriptor, error) {
	start := time.Now()

	if trainSplit <= 0 || trainSplit > 1 || valSplit < 0 || trainSplit+valSplit > 1 {
		return nil, fmt.Errorf("%w: train=%g val=%g", ErrInvalidSplit, trainSplit, valSplit)
	}

	p.progress(0.05, "Clearing staged dataset...")
	if err := p.clearStaged(); err != nil {
		return nil, err
	}

	p.progress(0.15, "Collecting annotated samples...")
	samples, err := p.collect(ctx)
	if err != nil {
		return nil, err
	}
	if len(samples) == 0 {
		return nil, ErrNoSamples
	}

	// Uniform shuffle, unseeded on purpose; reproducibility of the split
	// is a non-goal.
	rand.Shuffle(len(samples), func(i, j int) {
		samples[i], samples[j] = samples[j], samples[i]
	})

	nTrain := int(math.Floor(float64(len(samples)) * trainSplit))
	train, val := samples[:nTrain], samples[nTrain:]

	if err := p.stage(ctx, train, trainDirName, 0.2, 0.6); err != nil {
		return nil, err
	}
	if err := p.stage(ctx, val, valDirName, 0.6, 0.9); err != nil {
		return nil, err
	}

	p.progress(0.95, "Writing dataset descriptor...")
	desc, err := p.writeDescriptor(len(train), len(val))
	if err != nil {
		return nil, err
	}

	metrics.RecordDatasetPrepDuration(time.Since(start).Seconds())
	metrics.UpdateDatasetSplitSizes(len(train), len(val))
	p.log.Info(ctx, "dataset prepared",
		logger.Int("train_samples", len(train)),
		logger.Int("val_samples", len(val)),
		logger.String("root", p.root),
	)

	p.progress(1.0, "Dataset ready")
	return desc, nil
}

// clearStaged removes previously staged split directories so re-runs are
// idempotent, then recreates the layout.
func (p *Preparer) clearStaged() error {
	for _, split := range []string{trainDirName, valDirName} {
		if err := os.RemoveAll(filepath.Join(p.root, split)); err != nil {
			return fmt.Errorf("clearing staged split %s: %w", split, err)
		}
		for _, sub := range []string{imagesSubdir, labelsSubdir} {
			if err := os.MkdirAll(filepath.Join(p.root, split, sub), dirPerm); err != nil {
				return fmt.Errorf("creating split dir %s/%s: %w", split, sub, err)
			}
		}
	}
	return nil
}

// collect pairs saved annotations with existing source images. Samples
// missing either side are skipped, not failed.
func (p *Preparer) collect(ctx context.Context) ([]model.Sample, error) {
	anns, err := p.annotations.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing annotations: %w", err)
	}

	var samples []model.Sample
	for _, ann := range anns {
		if len(ann.Regions) == 0 {
			metrics.RecordDatasetSampleSkipped()
			continue
		}
		path, err := p.images.Path(ctx, ann.ImageName)
		if err != nil {
			metrics.RecordDatasetSampleSkipped()
			p.log.Debug(ctx, "skipping sample without image", logger.String("image", ann.ImageName))
			continue
		}
		w, h, err := p.images.Dimensions(ctx, ann.ImageName)
		if err != nil || w <= 0 || h <= 0 {
			metrics.RecordDatasetSampleSkipped()
			p.log.Debug(ctx, "skipping undecodable image", logger.String("image", ann.ImageName))
			continue
		}
		samples = append(samples, model.Sample{
			ImageName:  ann.ImageName,
			ImagePath:  path,
			ImageW:     w,
			ImageH:     h,
			Annotation: ann,
		})
	}
	return samples, nil
}

// stage copies images and writes label files for one split, reporting
// progress across [from,to].
func (p *Preparer) stage(ctx context.Context, samples []model.Sample, split string, from, to float64) error {
	for i, s := range samples {
		select {
		case <-ctx.Done():
			return fmt.Errorf("staging cancelled: %w", ctx.Err())
		default:
		}

		dst := filepath.Join(p.root, split, imagesSubdir, s.ImageName)
		if err := copyFile(s.ImagePath, dst); err != nil {
			return fmt.Errorf("copying %s into %s split: %w", s.ImageName, split, err)
		}
		if err := p.writeLabel(s, split); err != nil {
			return err
		}

		frac := from + (to-from)*float64(i+1)/float64(len(samples))
		p.progress(frac, fmt.Sprintf("Staging %s split (%d/%d)", split, i+1, len(samples)))
	}
	return nil
}

// writeLabel emits one "<class_id> <x_center> <y_center> <width> <height>"
// line per region, normalized to the image dimensions.
func (p *Preparer) writeLabel(s model.Sample, split string) error {
	var b strings.Builder
	for _, r := range s.Annotation.Regions {
		xc := clamp01((r.X + r.Width/2) / float64(s.ImageW))
		yc := clamp01((r.Y + r.Height/2) / float64(s.ImageH))
		w := clamp01(r.Width / float64(s.ImageW))
		h := clamp01(r.Height / float64(s.ImageH))
		fmt.Fprintf(&b, "%d %.6f %.6f %.6f %.6f\n", r.ClassID, xc, yc, w, h)
	}

	name := strings.TrimSuffix(s.ImageName, filepath.Ext(s.ImageName)) + labelExt
	path := filepath.Join(p.root, split, labelsSubdir, name)
	if err := os.WriteFile(path, []byte(b.String()), filePerm); err != nil {
		return fmt.Errorf("writing label for %s: %w", s.ImageName, err)
	}
	return nil
}

// writeDescriptor emits dataset.yaml at the dataset root.
func (p *Preparer) writeDescriptor(nTrain, nVal int) (*model.DatasetDescriptor, error) {
	absRoot, err := filepath.Abs(p.root)
	if err != nil {
		return nil, fmt.Errorf("resolving dataset root: %w", err)
	}

	desc := &model.DatasetDescriptor{
		Path:       absRoot,
		Train:      filepath.Join(trainDirName, imagesSubdir),
		Val:        filepath.Join(valDirName, imagesSubdir),
		NC:         len(p.classNames),
		Names:      p.classNames,
		TrainCount: nTrain,
		ValCount:   nVal,
	}

	data, err := yaml.Marshal(desc)
	if err != nil {
		return nil, fmt.Errorf("encoding dataset descriptor: %w", err)
	}
	if err := os.WriteFile(filepath.Join(p.root, descriptorName), data, filePerm); err != nil {
		return nil, fmt.Errorf("writing dataset descriptor: %w", err)
	}
	return desc, nil
}

// DescriptorPath returns the descriptor location for a dataset root.
func DescriptorPath(root string) string {
	return filepath.Join(root, descriptorName)
}

// StagedCounts reports how many images are staged per split under root, and
// how many of them are missing a label file. Useful for stats endpoints; a
// never-prepared root reports zeros.
func StagedCounts(root string) (train, val, unlabeled int) {
	for _, split := range []string{trainDirName, valDirName} {
		entries, err := os.ReadDir(filepath.Join(root, split, imagesSubdir))
		if err != nil {
			continue
		}
		for _, e := range entries {
			if e.IsDir() {
				continue
			}
			if split == trainDirName {
				train++
			} else {
				val++
			}
			label := strings.TrimSuffix(e.Name(), filepath.Ext(e.Name())) + labelExt
			if _, err := os.Stat(filepath.Join(root, split, labelsSubdir, label)); err != nil {
				unlabeled++
			}
		}
	}
	return train, val, unlabeled
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer func() { _ = in.Close() }()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer func() { _ = out.Close() }()

	if _, err := io.Copy(out, in); err != nil {
		return err
	}
	return out.Close()
}

func clamp01(v float64) float64 {
	return math.Max(0, math.Min(1, v))
}
