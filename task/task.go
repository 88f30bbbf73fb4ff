package task

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"

	"mediahub/storage"
)

type Kind string

const (
	KindURL       Kind = "url"
	KindSwarm     Kind = "swarm"
	KindTranscode Kind = "transcode"
)

// Job is a one-shot request to run a driver against a task id. It has no
// state of its own; everything observable goes through the task's events.
type Job interface {
	Kind() Kind
	ID() string
	Validate() error
}

// URLJob fetches a file over HTTP(S) into the media directory.
type URLJob struct {
	URL      string `json:"url"`
	Filename string `json:"filename"`
	TaskID   string `json:"taskId"`
}

func (j *URLJob) Kind() Kind { return KindURL }
func (j *URLJob) ID() string { return j.TaskID }

func (j *URLJob) Validate() error {
	if missing := missingFields(map[string]string{
		"url":      j.URL,
		"filename": j.Filename,
		"taskId":   j.TaskID,
	}); len(missing) > 0 {
		return &ClientError{Msg: "URL, filename, and taskId are required", Fields: missing}
	}

	u, err := url.Parse(j.URL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return &ClientError{Msg: "url must be an absolute http or https URL", Fields: []string{"url"}}
	}
	if err := storage.ValidateName(j.Filename); err != nil {
		return &ClientError{Msg: "filename must be a plain file name", Fields: []string{"filename"}}
	}
	return nil
}

// SwarmJob fetches the content behind a magnet descriptor.
type SwarmJob struct {
	MagnetLink string `json:"magnetLink"`
	TaskID     string `json:"taskId"`
}

func (j *SwarmJob) Kind() Kind { return KindSwarm }
func (j *SwarmJob) ID() string { return j.TaskID }

func (j *SwarmJob) Validate() error {
	if missing := missingFields(map[string]string{
		"magnetLink": j.MagnetLink,
		"taskId":     j.TaskID,
	}); len(missing) > 0 {
		return &ClientError{Msg: "Magnet link and taskId are required", Fields: missing}
	}
	if !strings.HasPrefix(strings.ToLower(j.MagnetLink), "magnet:?") {
		return &ClientError{Msg: "magnetLink must be a magnet URI", Fields: []string{"magnetLink"}}
	}
	return nil
}

// TranscodeJob re-encodes a stored file. Every option is independent and a
// nil or empty option is left out of the engine invocation entirely.
type TranscodeJob struct {
	InputFilename  string `json:"inputFilename"`
	OutputFilename string `json:"outputFilename"`
	TaskID         string `json:"taskId"`

	Codec      string `json:"codec,omitempty"`
	Quality    *int   `json:"quality,omitempty"`
	Preset     string `json:"preset,omitempty"`
	Bitrate    string `json:"bitrate,omitempty"`
	Resolution string `json:"resolution,omitempty"`
	ExtraArgs  string `json:"extraArgs,omitempty"`
}

func (j *TranscodeJob) Kind() Kind { return KindTranscode }
func (j *TranscodeJob) ID() string { return j.TaskID }

var (
	resolutionPattern = regexp.MustCompile(`^[1-9][0-9]{0,4}x[1-9][0-9]{0,4}$`)
	bitratePattern    = regexp.MustCompile(`^[0-9]+(\.[0-9]+)?[kKmM]?$`)
	tokenPattern      = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9_.:-]*$`)
)

func (j *TranscodeJob) Validate() error {
	if missing := missingFields(map[string]string{
		"inputFilename":  j.InputFilename,
		"outputFilename": j.OutputFilename,
		"taskId":         j.TaskID,
	}); len(missing) > 0 {
		return &ClientError{Msg: "Input filename, output filename, and taskId are required", Fields: missing}
	}

	if err := storage.ValidateName(j.InputFilename); err != nil {
		return &ClientError{Msg: "inputFilename must be a plain file name", Fields: []string{"inputFilename"}}
	}
	if err := storage.ValidateName(j.OutputFilename); err != nil {
		return &ClientError{Msg: "outputFilename must be a plain file name", Fields: []string{"outputFilename"}}
	}
	if j.InputFilename == j.OutputFilename {
		return &ClientError{Msg: "outputFilename must differ from inputFilename", Fields: []string{"outputFilename"}}
	}

	if j.Codec != "" && !tokenPattern.MatchString(j.Codec) {
		return invalidOption("codec", j.Codec)
	}
	if j.Quality != nil && (*j.Quality < 0 || *j.Quality > 63) {
		return &ClientError{Msg: "quality must be between 0 and 63", Fields: []string{"quality"}}
	}
	if j.Preset != "" && !tokenPattern.MatchString(j.Preset) {
		return invalidOption("preset", j.Preset)
	}
	if j.Bitrate != "" && !bitratePattern.MatchString(j.Bitrate) {
		return invalidOption("bitrate", j.Bitrate)
	}
	if j.Resolution != "" && !resolutionPattern.MatchString(j.Resolution) {
		return &ClientError{Msg: "resolution must look like 1280x720", Fields: []string{"resolution"}}
	}
	return nil
}

func invalidOption(field, value string) *ClientError {
	return &ClientError{Msg: fmt.Sprintf("invalid %s: %q", field, value), Fields: []string{field}}
}

// missingFields returns the names of blank values in a stable order.
func missingFields(fields map[string]string) []string {
	var missing []string
	for _, name := range fieldOrder {
		if v, ok := fields[name]; ok && strings.TrimSpace(v) == "" {
			missing = append(missing, name)
		}
	}
	return missing
}

var fieldOrder = []string{
	"url", "filename", "magnetLink", "inputFilename", "outputFilename", "taskId",
}
