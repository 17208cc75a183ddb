package ui

import (
	"encoding/json"
	"io"
	"sort"

	"github.com/arthur-debert/sfcbuild/pkg/errors"
	"github.com/arthur-debert/sfcbuild/pkg/pipeline"
	"github.com/arthur-debert/sfcbuild/pkg/publish"
	"github.com/arthur-debert/sfcbuild/pkg/verify"
)

type jsonRenderer struct {
	w io.Writer
}

type jsonFile struct {
	Path   string `json:"path"`
	Kind   string `json:"kind"`
	Origin string `json:"origin"`
	From   string `json:"from,omitempty"`
	Size   int64  `json:"size"`
}

type jsonBuild struct {
	OutputDir   string     `json:"output_dir"`
	DryRun      bool       `json:"dry_run"`
	Target      string     `json:"target"`
	Plugins     []string   `json:"plugins"`
	Files       []jsonFile `json:"files"`
	Bytes       int64      `json:"bytes"`
	Transformed int        `json:"transformed"`
	Copied      int        `json:"copied"`
	CacheHits   int64      `json:"cache_hits"`
	CacheMisses int64      `json:"cache_misses"`
	DurationMS  int64      `json:"duration_ms"`
	Warnings    []string   `json:"warnings"`
}

func (r *jsonRenderer) encode(v interface{}) error {
	enc := json.NewEncoder(r.w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func buildJSON(result *pipeline.Result) jsonBuild {
	out := jsonBuild{
		OutputDir:   result.OutputDir,
		DryRun:      result.DryRun,
		Target:      result.Target,
		Plugins:     result.Plugins,
		Bytes:       result.Bytes,
		Transformed: result.Transformed,
		Copied:      result.Copied,
		CacheHits:   result.CacheHits,
		CacheMisses: result.CacheMisses,
		DurationMS:  result.Duration.Milliseconds(),
		Warnings:    result.Warnings,
		Files:       make([]jsonFile, 0, len(result.Outputs)),
	}
	if out.Warnings == nil {
		out.Warnings = []string{}
	}
	for _, o := range result.Outputs {
		f := jsonFile{Path: o.Path, Kind: string(o.Kind), Origin: o.Origin, From: o.From}
		if result.Manifest != nil {
			f.Size = result.Manifest.Files[o.Path].Size
		}
		out.Files = append(out.Files, f)
	}
	sort.Slice(out.Files, func(i, j int) bool { return out.Files[i].Path < out.Files[j].Path })
	return out
}

func (r *jsonRenderer) RenderBuild(result *pipeline.Result) error {
	return r.encode(buildJSON(result))
}

func (r *jsonRenderer) RenderPlan(result *pipeline.Result) error {
	return r.encode(buildJSON(result))
}

func (r *jsonRenderer) RenderVerify(report *verify.Report) error {
	problems := make([]map[string]string, 0, len(report.Problems))
	for _, p := range report.Problems {
		problems = append(problems, map[string]string{"path": p.Path, "message": p.Message})
	}
	return r.encode(map[string]interface{}{
		"output_dir": report.OutputDir,
		"ok":         report.OK(),
		"files":      report.Files,
		"mirrored":   report.Mirrored,
		"problems":   problems,
	})
}

func (r *jsonRenderer) RenderPublish(summary *publish.Summary) error {
	return r.encode(map[string]interface{}{
		"bucket": summary.Bucket,
		"keys":   summary.Keys,
		"bytes":  summary.Bytes,
	})
}

func (r *jsonRenderer) RenderError(err error) error {
	if err == nil {
		return nil
	}
	out := map[string]interface{}{
		"error":     err.Error(),
		"code":      string(errors.GetErrorCode(err)),
		"category":  string(errors.CategoryOf(err)),
		"exit_code": errors.ExitCode(err),
	}
	if p := errors.PathOf(err); p != "" {
		out["path"] = p
	}
	return r.encode(out)
}

func (r *jsonRenderer) RenderMessage(msg string) error {
	return r.encode(map[string]string{"message": msg})
}
