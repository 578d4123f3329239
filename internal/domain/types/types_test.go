package types_test

import (
	"testing"
	"time"

	types "github.com/aquametrics/shrimpd/internal/domain/types"
	. "github.com/smartystreets/goconvey/convey"
)

func TestModelInfo(t *testing.T) {
	Convey("Given a ModelInfo struct", t, func() {
		Convey("When creating a new model info", func() {
			now := time.Now()
			info := types.ModelInfo{
				Name:       "shrimp_yolov8n.pt",
				SizeBytes:  6_250_000,
				ModifiedAt: now,
				Path:       "models/shrimp_yolov8n.pt",
			}

			Convey("Then it should have the correct values", func() {
				So(info.Name, ShouldEqual, "shrimp_yolov8n.pt")
				So(info.SizeBytes, ShouldEqual, 6_250_000)
				So(info.ModifiedAt, ShouldEqual, now)
				So(info.Path, ShouldEqual, "models/shrimp_yolov8n.pt")
			})
		})

		Convey("When creating a model info with zero values", func() {
			info := types.ModelInfo{}

			Convey("Then it should have default values", func() {
				So(info.Name, ShouldEqual, "")
				So(info.SizeBytes, ShouldEqual, 0)
				So(info.ModifiedAt, ShouldEqual, time.Time{})
				So(info.Path, ShouldEqual, "")
			})
		})

		Convey("When listing multiple model infos", func() {
			infos := []types.ModelInfo{
				{Name: "run-1.pt", SizeBytes: 6_000_000},
				{Name: "run-2.pt", SizeBytes: 6_100_000},
				{Name: "run-3.pt", SizeBytes: 6_200_000},
			}

			Convey("Then all entries should be valid", func() {
				for _, info := range infos {
					So(info.Name, ShouldNotBeEmpty)
					So(info.SizeBytes, ShouldBeGreaterThan, 0)
				}
			})
		})
	})
}
