package api

import (
	"errors"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/url"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/google/uuid"
)

// audioFormats is the set of accepted upload extensions, matched
// case-insensitively against the filename suffix.
var audioFormats = map[string]bool{
	".wav":  true,
	".mp3":  true,
	".m4a":  true,
	".flac": true,
	".ogg":  true,
	".webm": true,
}

// validationError carries the parameter and code of a failed check so
// handlers can emit the standard error body.
type validationError struct {
	param   string
	code    string
	status  int
	message string
}

func (e *validationError) Error() string { return e.message }

func invalidParam(param, code, message string) error {
	return &validationError{param: param, code: code, status: http.StatusBadRequest, message: message}
}

// writeValidationError maps err onto the error envelope. Non-validation
// errors fall back to a generic 500.
func (s *Server) writeValidationError(w http.ResponseWriter, err error) {
	var ve *validationError
	if errors.As(err, &ve) {
		writeError(w, ve.status, errTypeInvalidRequest, ve.code, ve.param, ve.message)
		return
	}
	serverError(w)
}

// audioSource is the outcome of parsing a submission form: exactly one of
// File and AudioURL is set.
type audioSource struct {
	File     multipart.File
	Filename string
	AudioURL string
}

// Close releases the uploaded file, if any.
func (a *audioSource) Close() {
	if a.File != nil {
		_ = a.File.Close()
	}
}

// uploadBodySlack is the extra request-body headroom on top of the file
// limit, covering multipart framing and the non-file form fields. The real
// cap is checked against the file part's own size after parsing.
const uploadBodySlack = 1 << 20

// parseAudioSource reads the multipart form and enforces the source rules:
// exactly one of an `audio` file part or an `audio_url` field, a recognised
// audio extension, an http(s) URL, and the size cap. The cap applies to the
// uploaded file's bytes, so a file of exactly maxMB passes; MaxBytesReader
// only guards the whole body against grossly oversized requests.
func parseAudioSource(r *http.Request, maxMB int) (*audioSource, error) {
	limit := int64(maxMB) << 20
	r.Body = http.MaxBytesReader(nil, r.Body, limit+uploadBodySlack)

	// Parse with a small memory ceiling; larger parts spill to temp files.
	if err := r.ParseMultipartForm(8 << 20); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			return nil, &validationError{
				param:   "audio",
				code:    "file_too_large",
				status:  http.StatusRequestEntityTooLarge,
				message: fmt.Sprintf("request exceeds the %d MB limit", maxMB),
			}
		}
		return nil, invalidParam("audio", "missing_audio_source",
			"request must be multipart/form-data")
	}

	file, header, fileErr := r.FormFile("audio")
	audioURL := strings.TrimSpace(r.FormValue("audio_url"))
	hasFile := fileErr == nil

	if hasFile == (audioURL != "") {
		if hasFile {
			_ = file.Close()
		}
		return nil, invalidParam("audio", "missing_audio_source",
			"provide exactly one of an audio file or audio_url")
	}

	if hasFile {
		ext := strings.ToLower(filepath.Ext(header.Filename))
		if !audioFormats[ext] {
			_ = file.Close()
			return nil, invalidParam("audio", "invalid_audio_format",
				fmt.Sprintf("unsupported audio format %q", ext))
		}
		if header.Size > limit {
			_ = file.Close()
			return nil, &validationError{
				param:   "audio",
				code:    "file_too_large",
				status:  http.StatusRequestEntityTooLarge,
				message: fmt.Sprintf("audio file exceeds the %d MB limit", maxMB),
			}
		}
		return &audioSource{File: file, Filename: header.Filename}, nil
	}

	u, err := url.Parse(audioURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, invalidParam("audio_url", "invalid_url_format",
			"audio_url must be an http(s) URL")
	}
	return &audioSource{AudioURL: audioURL}, nil
}

// requireUUID validates a path id. Different well-formedness from ownership:
// malformed ids are 400, unknown or foreign ids are 404.
func requireUUID(id, param string) error {
	if _, err := uuid.Parse(id); err != nil {
		return invalidParam(param, "invalid_id_format", "id must be a UUID")
	}
	return nil
}

// formBool interprets a form checkbox-ish value.
func formBool(v string) bool {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "1", "true", "yes", "on":
		return true
	}
	return false
}

// formInt parses an optional integer form field; empty or invalid → 0.
func formInt(v string) int {
	n, _ := strconv.Atoi(strings.TrimSpace(v))
	return n
}

// parseWebhookURL validates an optional webhook_url field.
func parseWebhookURL(v string) (string, error) {
	v = strings.TrimSpace(v)
	if v == "" {
		return "", nil
	}
	u, err := url.Parse(v)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return "", invalidParam("webhook_url", "invalid_url_format",
			"webhook_url must be an http(s) URL")
	}
	return v, nil
}
