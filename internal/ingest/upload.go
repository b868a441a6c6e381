package ingest

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/lewisedginton/sdr_chatbot/internal/storage_manager"
	"github.com/lewisedginton/sdr_chatbot/internal/store"
	"github.com/lewisedginton/sdr_chatbot/pkg/logger"
)

// ImportSource is the context source tag of imported turns.
const ImportSource = "import"

var pairPattern = regexp.MustCompile(`(?is)cliente:\s*"([^"]+)"\s*gabriel:\s*"([^"]+)"`)

// Pair is one imported lead message and the answer the SDR gave.
type Pair struct {
	UserMessage string
	Response    string
}

// ParsePairs extracts every `cliente: "..." gabriel: "..."` pair from text.
func ParsePairs(text string) []Pair {
	matches := pairPattern.FindAllStringSubmatch(text, -1)
	pairs := make([]Pair, 0, len(matches))
	for _, m := range matches {
		user, resp := strings.TrimSpace(m[1]), strings.TrimSpace(m[2])
		if user == "" || resp == "" {
			continue
		}
		pairs = append(pairs, Pair{UserMessage: user, Response: resp})
	}
	return pairs
}

// TurnSaver persists imported turns.
type TurnSaver interface {
	SaveTurn(ctx context.Context, t store.Turn) (store.SaveResult, error)
}

// ImportResult reports an import. Errors holds one line per failed pair.
type ImportResult struct {
	Filename string   `json:"filename"`
	Found    int      `json:"found"`
	Inserted int      `json:"inserted"`
	Skipped  int      `json:"skipped"`
	Errors   []string `json:"errors,omitempty"`
}

// Importer loads training pairs into the conversation store.
type Importer struct {
	turns   TurnSaver
	uploads storage_manager.FileProvider
	log     logger.Logger
	now     func() time.Time
}

// NewImporter creates an importer. uploads is optional; when set, every
// imported file is archived there.
func NewImporter(turns TurnSaver, uploads storage_manager.FileProvider, log logger.Logger) *Importer {
	if log == nil {
		log = logger.NewNopLogger()
	}
	return &Importer{turns: turns, uploads: uploads, log: log, now: time.Now}
}

// ErrNoPairs is wrapped when a file holds no recognisable pairs.
var ErrNoPairs = errors.New("no cliente/gabriel pairs found")

// Import parses data and saves each pair. Duplicates count as skipped. A
// failed pair is recorded in the result and does not stop the import.
func (im *Importer) Import(ctx context.Context, filename string, data []byte) (ImportResult, error) {
	res := ImportResult{Filename: filename}
	pairs := ParsePairs(string(data))
	res.Found = len(pairs)
	if len(pairs) == 0 {
		return res, fmt.Errorf("%s: %w", filename, ErrNoPairs)
	}

	for i, p := range pairs {
		saved, err := im.turns.SaveTurn(ctx, store.Turn{
			UserMessage: p.UserMessage,
			Response:    p.Response,
			Context:     map[string]any{"source": ImportSource},
		})
		if err != nil {
			res.Errors = append(res.Errors, fmt.Sprintf("pair %d: %v", i+1, err))
			continue
		}
		if saved.Inserted {
			res.Inserted++
		} else {
			res.Skipped++
		}
	}

	im.archive(ctx, filename, data)
	im.log.Info("conversation pairs imported",
		logger.StringField("file", filename),
		logger.IntField("found", res.Found),
		logger.IntField("inserted", res.Inserted),
		logger.IntField("skipped", res.Skipped),
		logger.IntField("failed", len(res.Errors)))
	return res, nil
}

func (im *Importer) archive(ctx context.Context, filename string, data []byte) {
	if im.uploads == nil {
		return
	}
	key := fmt.Sprintf("%s-%s", im.now().UTC().Format("20060102T150405Z"), filepath.Base(filename))
	if err := im.uploads.Write(ctx, key, data); err != nil {
		im.log.Warn("failed to archive upload", logger.StringField("file", filename), logger.ErrorField(err))
	}
}
