package model

// Region is one annotated bounding box on a sample image. X and Y are the
// top-left corner in pixels; normalization happens at label-write time.
type Region struct {
	ClassID int     `json:"class_id"`
	X       float64 `json:"x"`
	Y       float64 `json:"y"`
	Width   float64 `json:"width"`
	Height  float64 `json:"height"`
}

// Annotation is the saved region list for one sample image.
type Annotation struct {
	ImageName string   `json:"image_name"`
	Regions   []Region `json:"regions"`
}

// Sample pairs an annotation with its source image on disk.
type Sample struct {
	ImageName  string
	ImagePath  string
	ImageW     int
	ImageH     int
	Annotation Annotation
}

// DatasetDescriptor is the structured file the training worker consumes as
// its sole dataset specification.
type DatasetDescriptor struct {
	// Path is the absolute dataset root.
	Path string `yaml:"path"`
	// Train and Val are image directories relative to Path.
	Train string `yaml:"train"`
	Val   string `yaml:"val"`
	// NC is the class count; Names is the ordered class-name list whose
	// order matches class-id assignment.
	NC    int      `yaml:"nc"`
	Names []string `yaml:"names"`

	// Split sizes, informational only; not read back by the worker.
	TrainCount int `yaml:"-"`
	ValCount   int `yaml:"-"`
}
