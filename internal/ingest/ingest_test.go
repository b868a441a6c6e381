package ingest

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lewisedginton/sdr_chatbot/internal/media"
	"github.com/lewisedginton/sdr_chatbot/internal/storage_manager"
	"github.com/lewisedginton/sdr_chatbot/internal/store"
	"github.com/lewisedginton/sdr_chatbot/pkg/logger"
)

func newTestStore(t *testing.T) *store.Store {
	t.Helper()
	s, err := store.Open(context.Background(), store.Config{
		Driver: store.DriverSQLite,
		Path:   filepath.Join(t.TempDir(), "bot.db"),
	}, logger.NewNopLogger())
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestSplitRecords(t *testing.T) {
	text := "Cliente: oi\r\nGabriel: olá\r\n\r\n\n\n  \n\nsegundo registro\n\n"
	assert.Equal(t, []string{"Cliente: oi\nGabriel: olá", "segundo registro"}, SplitRecords(text))
	assert.Empty(t, SplitRecords("  \n\n "))
}

func TestLibrary(t *testing.T) {
	ctx := context.Background()
	files := storage_manager.NewLocalFileProvider(t.TempDir())
	lib := NewLibrary(files, nil)

	ex, err := lib.Load(ctx)
	require.NoError(t, err)
	assert.Empty(t, ex.Conversations)
	assert.Empty(t, ex.PromptExamples())

	require.NoError(t, files.Write(ctx, ConversationsFile, []byte("um\n\ndois\n\ntrês")))
	require.NoError(t, files.Write(ctx, ReferencesDir+"/b.md", []byte("tabela de preços")))
	require.NoError(t, files.Write(ctx, ReferencesDir+"/a.txt", []byte("catálogo")))
	require.NoError(t, files.Write(ctx, ReferencesDir+"/c.pdf", []byte("%PDF")))

	require.NoError(t, lib.AppendTranscript(ctx, "primeira transcrição"))
	require.NoError(t, lib.AppendTranscript(ctx, "  "))
	require.NoError(t, lib.AppendTranscript(ctx, "segunda transcrição"))

	raw, err := files.Read(ctx, TranscriptsFile)
	require.NoError(t, err)
	assert.Equal(t, "primeira transcrição\n\nsegunda transcrição", string(raw))

	ex, err = lib.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"um", "dois", "três"}, ex.Conversations)
	assert.Equal(t, []string{"catálogo", "tabela de preços"}, ex.References)
	assert.Equal(t, []string{"um", "dois", "primeira transcrição"}, ex.PromptExamples())
}

func TestParsePairs(t *testing.T) {
	text := `
CLIENTE: "Qual o preço?"
Gabriel: "Depende do escopo.
Vamos conversar?"

cliente:"oi" gabriel:"Olá!"
cliente: "sem resposta"
`
	pairs := ParsePairs(text)
	require.Len(t, pairs, 2)
	assert.Equal(t, Pair{UserMessage: "Qual o preço?", Response: "Depende do escopo.\nVamos conversar?"}, pairs[0])
	assert.Equal(t, Pair{UserMessage: "oi", Response: "Olá!"}, pairs[1])
}

func TestImport(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	uploads := storage_manager.NewLocalFileProvider(t.TempDir())
	im := NewImporter(s, uploads, nil)

	data := []byte(`cliente: "Qual o preço?" gabriel: "Depende do escopo."
cliente: "Vocês fazem CRM?" gabriel: "Sim, implantamos CRM."
cliente: "Qual o preço?" gabriel: "Depende do escopo."`)

	res, err := im.Import(ctx, "mensagens.txt", data)
	require.NoError(t, err)
	assert.Equal(t, ImportResult{Filename: "mensagens.txt", Found: 3, Inserted: 2, Skipped: 1}, res)

	again, err := im.Import(ctx, "mensagens.txt", data)
	require.NoError(t, err)
	assert.Equal(t, 0, again.Inserted)
	assert.Equal(t, 3, again.Skipped)

	recent, err := s.ListRecent(ctx, 10)
	require.NoError(t, err)
	require.Len(t, recent, 2)
	assert.Equal(t, ImportSource, recent[0].Context["source"])
	assert.Empty(t, recent[0].Intent)

	archived, err := uploads.List(ctx, "")
	require.NoError(t, err)
	require.NotEmpty(t, archived)
	assert.True(t, strings.HasSuffix(archived[0], "-mensagens.txt"))
}

func TestImportWithoutPairs(t *testing.T) {
	im := NewImporter(newTestStore(t), nil, nil)
	res, err := im.Import(context.Background(), "vazio.txt", []byte("nada aqui"))
	assert.ErrorIs(t, err, ErrNoPairs)
	assert.Equal(t, 0, res.Found)
}

type failingSaver struct{}

func (failingSaver) SaveTurn(context.Context, store.Turn) (store.SaveResult, error) {
	return store.SaveResult{}, errors.New("database is locked")
}

func TestImportCollectsPairErrors(t *testing.T) {
	im := NewImporter(failingSaver{}, nil, nil)
	res, err := im.Import(context.Background(), "f.txt", []byte(`cliente: "a" gabriel: "b"`))
	require.NoError(t, err)
	require.Len(t, res.Errors, 1)
	assert.Contains(t, res.Errors[0], "database is locked")
}

type pdfRunner struct{ out string }

func (r pdfRunner) Run(context.Context, string, ...string) ([]byte, error) { return []byte(r.out), nil }

func TestProcessFile(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	dir := t.TempDir()

	long := strings.Repeat("automação de vendas para empresas ", 40)
	txt := filepath.Join(dir, "guia.txt")
	require.NoError(t, os.WriteFile(txt, []byte(long), 0o600))

	p := NewDocumentProcessor(s, media.NewPDFExtractorWithRunner("", pdfRunner{out: "Proposta CRM completa"}))

	res, err := p.ProcessFile(ctx, txt)
	require.NoError(t, err)
	assert.Equal(t, "guia.txt", res.Filename)
	assert.Equal(t, "txt", res.FileType)
	assert.Equal(t, 200, res.WordCount)
	assert.True(t, strings.HasSuffix(res.Preview, "..."))
	assert.Equal(t, store.ContentHash(strings.TrimSpace(long)), res.Hash)

	pdf := filepath.Join(dir, "proposta.PDF")
	require.NoError(t, os.WriteFile(pdf, []byte("%PDF"), 0o600))
	res, err = p.ProcessFile(ctx, pdf)
	require.NoError(t, err)
	assert.Equal(t, "pdf", res.FileType)
	assert.Equal(t, "Proposta CRM completa", res.Preview)

	docs, err := s.ListDocuments(ctx)
	require.NoError(t, err)
	require.Len(t, docs, 2)
	for _, d := range docs {
		if d.FileType == "txt" {
			assert.Equal(t, 500, len([]rune(d.Summary)))
			assert.Contains(t, d.Keywords, "automação")
		}
	}
}

func TestProcessFileErrors(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	p := NewDocumentProcessor(newTestStore(t), nil)

	docx := filepath.Join(dir, "a.docx")
	require.NoError(t, os.WriteFile(docx, []byte("x"), 0o600))
	_, err := p.ProcessFile(ctx, docx)
	assert.ErrorIs(t, err, media.ErrUnsupported)

	pdf := filepath.Join(dir, "a.pdf")
	require.NoError(t, os.WriteFile(pdf, []byte("x"), 0o600))
	_, err = p.ProcessFile(ctx, pdf)
	assert.ErrorIs(t, err, media.ErrUnsupported)

	empty := filepath.Join(dir, "vazio.txt")
	require.NoError(t, os.WriteFile(empty, []byte("  \n"), 0o600))
	_, err = p.ProcessFile(ctx, empty)
	assert.Error(t, err)

	_, err = p.ProcessFile(ctx, filepath.Join(dir, "missing.txt"))
	assert.Error(t, err)
}

func TestUploadFile(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	dir := t.TempDir()
	u := NewUploader(NewImporter(s, nil, nil), NewDocumentProcessor(s, nil))

	training := filepath.Join(dir, "treino.txt")
	require.NoError(t, os.WriteFile(training, []byte(`cliente: "oi" gabriel: "Olá!"`), 0o600))
	res, err := u.UploadFile(ctx, training)
	require.NoError(t, err)
	assert.Equal(t, UploadTraining, res.Kind)
	require.NotNil(t, res.Training)
	assert.Equal(t, 1, res.Training.Inserted)
	assert.Nil(t, res.Document)

	notes := filepath.Join(dir, "notas.txt")
	require.NoError(t, os.WriteFile(notes, []byte("Catálogo de serviços de CRM"), 0o600))
	res, err = u.UploadFile(ctx, notes)
	require.NoError(t, err)
	assert.Equal(t, UploadDocument, res.Kind)
	require.NotNil(t, res.Document)
	assert.Equal(t, 5, res.Document.WordCount)

	_, err = u.UploadFile(ctx, filepath.Join(dir, "planilha.xlsx"))
	assert.ErrorIs(t, err, media.ErrUnsupported)

	_, err = u.UploadFile(ctx, filepath.Join(dir, "missing.txt"))
	assert.Error(t, err)
}

func TestUploadFromMemory(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	u := NewUploader(NewImporter(s, nil, nil),
		NewDocumentProcessor(s, media.NewPDFExtractorWithRunner("", pdfRunner{out: "Proposta CRM completa"})))

	res, err := u.Upload(ctx, "treino.md", []byte(`cliente: "oi" gabriel: "Olá!"`))
	require.NoError(t, err)
	assert.Equal(t, UploadTraining, res.Kind)

	res, err = u.Upload(ctx, "notas.txt", []byte("Catálogo de serviços"))
	require.NoError(t, err)
	assert.Equal(t, UploadDocument, res.Kind)
	assert.Equal(t, "notas.txt", res.Document.Filename)

	res, err = u.Upload(ctx, "dir/proposta.pdf", []byte("%PDF"))
	require.NoError(t, err)
	assert.Equal(t, UploadDocument, res.Kind)
	assert.Equal(t, "proposta.pdf", res.Document.Filename)
	assert.Equal(t, "Proposta CRM completa", res.Document.Preview)

	_, err = u.Upload(ctx, "vazio.txt", []byte(" \n "))
	assert.ErrorIs(t, err, ErrNoText)

	_, err = u.Upload(ctx, "planilha.xlsx", []byte("x"))
	assert.ErrorIs(t, err, media.ErrUnsupported)
}
