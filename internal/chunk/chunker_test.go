package chunk

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"harvester/internal/jsonval"
)

func parse(t *testing.T, s string) jsonval.Value {
	t.Helper()
	v, err := jsonval.Parse([]byte(s))
	require.NoError(t, err)
	return v
}

func TestID(t *testing.T) {
	assert.Equal(t, "doc_0_5d41402a", ID("doc", 0, "hello"))
	assert.Equal(t, ID("doc", 3, "hello"), ID("doc", 3, "hello"), "same inputs give the same id")
	assert.NotEqual(t, ID("doc", 3, "hello"), ID("doc", 3, "hellp"), "one changed character changes the id")
	assert.NotEqual(t, ID("doc", 3, "hello"), ID("doc", 4, "hello"))
	assert.NotEqual(t, ID("a", 3, "hello"), ID("b", 3, "hello"))
}

func TestSplit(t *testing.T) {
	assert.Nil(t, Split("", 10, 2))
	assert.Equal(t, []string{"short"}, Split("short", 10, 2))
	assert.Equal(t, []string{"abcdefghij"}, Split("abcdefghij", 10, 2))

	got := Split("abcdefghijklmnop", 6, 2)
	assert.Equal(t, []string{"abcdef", "efghij", "ijklmn", "mnop"}, got)

	for i := 1; i < len(got); i++ {
		prev := got[i-1]
		assert.True(t, strings.HasPrefix(got[i], prev[len(prev)-2:]), "windows overlap by 2")
	}
}

func TestSplit_Runes(t *testing.T) {
	got := Split("ééééé", 3, 1)
	assert.Equal(t, []string{"ééé", "ééé"}, got)
}

func TestDefaultConfig_Validate(t *testing.T) {
	require.NoError(t, DefaultConfig().Validate())
	assert.Error(t, Config{Size: 0, Overlap: 0, MetadataMaxLen: 1}.Validate())
	assert.Error(t, Config{Size: 10, Overlap: 10, MetadataMaxLen: 1}.Validate())
	assert.Error(t, Config{Size: 10, Overlap: -1, MetadataMaxLen: 1}.Validate())

	_, err := NewWindow(Config{Size: 5, Overlap: 9, MetadataMaxLen: 200})
	assert.Error(t, err)
}

func TestWindow_Scenario(t *testing.T) {
	w, err := NewWindow(DefaultConfig())
	require.NoError(t, err)

	chunks, err := w.Chunk("intro", parse(t, `{"title": "Intro", "body": {"para": "Hello world"}}`))
	require.NoError(t, err)
	require.Len(t, chunks, 1)

	c := chunks[0]
	assert.Equal(t, "Intro\nHello world", c.Content)
	assert.Equal(t, "intro_0_70da9e1e", c.ID)
	assert.Equal(t, "intro", c.Metadata["file_id"])
	assert.Equal(t, "intro", c.Metadata["source"])
	assert.Equal(t, 0, c.Metadata["obj_index"])
	assert.Equal(t, 0, c.Metadata["chunk_id"])
	assert.Equal(t, "Intro", c.Metadata["title"])
	assert.Equal(t, "Hello world", c.Metadata["body.para"])
}

func TestWindow_ListOfRecords(t *testing.T) {
	w, err := NewWindow(Config{Size: 8, Overlap: 2, MetadataMaxLen: 200})
	require.NoError(t, err)

	doc := parse(t, `[
		{"text": "0123456789"},
		"not a record",
		{"n": 5},
		{"text": "abc"}
	]`)
	chunks, err := w.Chunk("f", doc)
	require.NoError(t, err)
	require.Len(t, chunks, 3)

	assert.Equal(t, "01234567", chunks[0].Content)
	assert.Equal(t, "6789", chunks[1].Content)
	assert.Equal(t, "abc", chunks[2].Content)

	assert.True(t, strings.HasPrefix(chunks[1].ID, "f_1_"))
	assert.True(t, strings.HasPrefix(chunks[2].ID, "f_3000_"), "position is record index * 1000 + window index")
	assert.Equal(t, 3, chunks[2].Metadata["obj_index"])
}

func TestWindow_UnexpectedShape(t *testing.T) {
	w, err := NewWindow(DefaultConfig())
	require.NoError(t, err)

	_, err = w.Chunk("f", parse(t, `"just a string"`))
	assert.ErrorIs(t, err, ErrUnexpectedShape)
}

func TestWindow_MetadataNotOverriddenByRecord(t *testing.T) {
	w, err := NewWindow(DefaultConfig())
	require.NoError(t, err)

	chunks, err := w.Chunk("real", parse(t, `{"source": "spoofed", "text": "x"}`))
	require.NoError(t, err)
	require.Len(t, chunks, 1)
	assert.Equal(t, "real", chunks[0].Metadata["source"])
}

func TestSections(t *testing.T) {
	doc := parse(t, `{"Sem 1": ["Math", "Physics"], "Note": "electives vary", "Credits": 20}`)

	chunks, err := NewSections().Chunk("syllabus", doc)
	require.NoError(t, err)
	require.Len(t, chunks, 3)

	assert.Equal(t, "Sem 1:\nMath\nPhysics", chunks[0].Content)
	assert.Equal(t, "syllabus_0_26d2ae78", chunks[0].ID)
	assert.Equal(t, "Sem 1", chunks[0].Metadata["section"])
	assert.Equal(t, 0, chunks[0].Metadata["chunk_id"])

	assert.Equal(t, "electives vary", chunks[1].Content)
	assert.Equal(t, "20", chunks[2].Content)
	assert.True(t, strings.HasPrefix(chunks[2].ID, "syllabus_2_"))
}

func TestSections_RejectsNonObject(t *testing.T) {
	_, err := NewSections().Chunk("f", parse(t, `[{"a": ["b"]}]`))
	assert.ErrorIs(t, err, ErrUnexpectedShape)
}

func TestRecords(t *testing.T) {
	recs, err := Records(parse(t, `{"a": 1}`))
	require.NoError(t, err)
	assert.Len(t, recs, 1)

	recs, err = Records(parse(t, `[1, 2, 3]`))
	require.NoError(t, err)
	assert.Len(t, recs, 3)

	_, err = Records(parse(t, `42`))
	assert.ErrorIs(t, err, ErrUnexpectedShape)
}
