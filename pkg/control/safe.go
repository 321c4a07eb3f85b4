package control

import (
	"log/slog"

	"github.com/teslashibe/go-pathfinder/pkg/ranging"
	"github.com/teslashibe/go-pathfinder/pkg/vision"
)

// guard runs fn and turns a panic into a logged error. It reports whether
// fn completed.
func guard(logger *slog.Logger, what string, fn func()) (ok bool) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error("recovered panic", "in", what, "panic", r)
			ok = false
		}
	}()
	fn()
	return true
}

func (l *Loop) detect(frame vision.Frame) []vision.Detection {
	var dets []vision.Detection
	if !guard(l.logger, "detector", func() {
		dets = l.detector.Detect(frame, l.cfg.Confidence, l.cfg.ImageSize)
	}) {
		return nil
	}
	if l.cfg.ObstaclesOnly {
		dets = vision.FilterObstacles(dets, nil)
	}
	return dets
}

func (l *Loop) distance() ranging.Reading {
	d := ranging.Unavailable
	if !guard(l.logger, "range", func() { d = l.rng.Median(l.cfg.RangeSamples) }) {
		return ranging.Unavailable
	}
	return d
}
