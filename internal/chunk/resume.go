package chunk

import (
	"bufio"
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/emrakyz/Av1an/internal/errors"
)

// DoneRecord is one completed chunk persisted to the done file. Fingerprint
// captures the parameters the artifact was encoded with; a rerun only skips
// re-encoding when the fingerprint still matches.
type DoneRecord struct {
	Idx         int    `json:"idx"`
	Frames      int    `json:"frames"`
	Size        uint64 `json:"size"`
	Fingerprint string `json:"fingerprint"`
	Warning     string `json:"warning,omitempty"`
}

func doneFilePath(workDir string) string {
	return filepath.Join(workDir, "done.json")
}

// AppendDone appends a completion record to the done file. Records are
// line-delimited JSON so concurrent runs never rewrite earlier entries.
func AppendDone(rec DoneRecord, workDir string) error {
	f, err := os.OpenFile(doneFilePath(workDir), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return errors.NewIOError("failed to open done file", err)
	}
	defer func() { _ = f.Close() }()

	data, err := json.Marshal(rec)
	if err != nil {
		return errors.NewIOError("failed to encode done record", err)
	}
	data = append(data, '\n')
	if _, err := f.Write(data); err != nil {
		return errors.NewIOError("failed to append done record", err)
	}
	return nil
}

// LoadDone reads the done file and returns records keyed by chunk index.
// A missing file is an empty resume state. Unparseable lines are skipped;
// a torn final line from a crashed run must not poison the resume.
func LoadDone(workDir string) (map[int]DoneRecord, error) {
	f, err := os.Open(doneFilePath(workDir))
	if err != nil {
		if os.IsNotExist(err) {
			return map[int]DoneRecord{}, nil
		}
		return nil, errors.NewIOError("failed to open done file", err)
	}
	defer func() { _ = f.Close() }()

	done := make(map[int]DoneRecord)
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		var rec DoneRecord
		if err := json.Unmarshal(scanner.Bytes(), &rec); err != nil {
			continue
		}
		done[rec.Idx] = rec
	}
	if err := scanner.Err(); err != nil {
		return nil, errors.NewIOError("failed to read done file", err)
	}
	return done, nil
}

// VerifyResume filters done records down to chunks whose recorded parameters
// match the current build and whose artifact still exists with the recorded
// size. Everything else is re-encoded.
func VerifyResume(done map[int]DoneRecord, chunks []Chunk, workDir string) map[int]DoneRecord {
	valid := make(map[int]DoneRecord, len(done))
	for _, ch := range chunks {
		rec, ok := done[ch.Idx]
		if !ok {
			continue
		}
		if rec.Fingerprint != ch.Params.Fingerprint() {
			continue
		}
		if rec.Frames != ch.Frames() {
			continue
		}
		info, err := os.Stat(ArtifactPath(workDir, ch.Idx))
		if err != nil || info.Size() == 0 || uint64(info.Size()) != rec.Size {
			continue
		}
		valid[ch.Idx] = rec
	}
	return valid
}
