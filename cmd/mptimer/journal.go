package main

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	mperrors "github.com/VatsalSy/MPTimer/internal/errors"
	"github.com/VatsalSy/MPTimer/internal/state"
)

// maxLineSize bounds one JSON-lines record.
const maxLineSize = 64 * 1024

// readObservations parses a JSON-lines journal. Malformed lines and lines
// whose host clock runs backwards are skipped and collected in the batch.
func readObservations(r io.Reader, source string) ([]*state.Observation, *mperrors.ErrorBatch, error) {
	batch := &mperrors.ErrorBatch{Op: "journal.read"}
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 4096), maxLineSize)

	var (
		observations []*state.Observation
		lastNow      int64 = -1
		line         int
	)
	for scanner.Scan() {
		line++
		raw := scanner.Bytes()
		if len(raw) == 0 {
			continue
		}

		var obs state.Observation
		if err := json.Unmarshal(raw, &obs); err != nil {
			batch.Add(mperrors.New(mperrors.ErrorTypeInput, "journal.parse", source, err).
				WithContext("line", line))
			continue
		}
		if obs.NowNanos < lastNow {
			batch.Add(mperrors.New(mperrors.ErrorTypeInput, "journal.parse", source,
				fmt.Errorf("host clock went backwards: %s after %s",
					state.FormatHostTime(obs.Now()), state.FormatHostTime(time.Duration(lastNow)))).
				WithContext("line", line))
			continue
		}
		lastNow = obs.NowNanos
		observations = append(observations, &obs)
	}
	if err := scanner.Err(); err != nil {
		return nil, batch, mperrors.New(mperrors.ErrorTypeStorage, "journal.read", source, err)
	}

	return observations, batch, nil
}

// readObservationsFile reads a JSON-lines journal from disk.
func readObservationsFile(path string) ([]*state.Observation, *mperrors.ErrorBatch, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, mperrors.New(mperrors.ErrorTypeStorage, "journal.open", path, err)
	}
	defer f.Close()

	return readObservations(f, path)
}

// writeObservation appends one JSON-lines record.
func writeObservation(enc *json.Encoder, obs *state.Observation) error {
	if err := enc.Encode(obs); err != nil {
		return mperrors.New(mperrors.ErrorTypeStorage, "journal.write", "", err)
	}
	return nil
}

// isFile reports whether path names an existing regular file.
func isFile(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.Mode().IsRegular()
}
