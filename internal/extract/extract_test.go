package extract

import (
	"archive/zip"
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func buildDOCX(t *testing.T, bodyXML string) []byte {
	t.Helper()
	var b bytes.Buffer
	zw := zip.NewWriter(&b)
	f, err := zw.Create("word/document.xml")
	require.NoError(t, err)
	_, err = f.Write([]byte(`<?xml version="1.0" encoding="UTF-8"?>` + bodyXML))
	require.NoError(t, err)
	require.NoError(t, zw.Close())
	return b.Bytes()
}

func TestParseText(t *testing.T) {
	text, err := Parse("essay.TXT", []byte("hello world\nsecond line"))
	require.NoError(t, err)
	assert.Equal(t, "hello world\nsecond line", text)
}

func TestParseTextDropsInvalidUTF8(t *testing.T) {
	text, err := Parse("essay.txt", []byte("caf\xff\xfe\xc3\xa9"))
	require.NoError(t, err)
	assert.Equal(t, "café", text)
}

func TestParseDOCX(t *testing.T) {
	raw := buildDOCX(t, `<w:document><w:body><w:p><w:r><w:t>Chapter 1</w:t></w:r></w:p><w:p><w:r><w:t>Hello </w:t></w:r><w:r><w:t>world.</w:t></w:r></w:p></w:body></w:document>`)
	text, err := Parse("essay.docx", raw)
	require.NoError(t, err)
	assert.Equal(t, "Chapter 1\nHello world.", text)
}

func TestParseDOCXWithoutBody(t *testing.T) {
	var b bytes.Buffer
	zw := zip.NewWriter(&b)
	_, err := zw.Create("word/styles.xml")
	require.NoError(t, err)
	require.NoError(t, zw.Close())

	_, err = Parse("essay.docx", b.Bytes())
	assert.Error(t, err)
}

func TestParseUnsupported(t *testing.T) {
	_, err := Parse("slides.pptx", []byte("data"))
	assert.True(t, errors.Is(err, ErrUnsupportedType))
	assert.Equal(t, "", Bytes("slides.pptx", []byte("data")))
}

func TestBytesCorruptPDF(t *testing.T) {
	assert.Equal(t, "", Bytes("paper.pdf", []byte("not a pdf")))
}

func TestFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "essay.txt")
	require.NoError(t, os.WriteFile(path, []byte("plain text"), 0o644))

	assert.Equal(t, "plain text", File(path))
	assert.Equal(t, "", File(filepath.Join(dir, "missing.txt")))
}

func TestIsSupported(t *testing.T) {
	assert.True(t, IsSupported("a.pdf"))
	assert.True(t, IsSupported("A.DOCX"))
	assert.True(t, IsSupported("notes.txt"))
	assert.False(t, IsSupported("image.png"))
	assert.False(t, IsSupported("noext"))
}
