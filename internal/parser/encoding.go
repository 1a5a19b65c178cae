package parser

import (
	"bytes"
	"os"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/simplifiedchinese"

	apperrors "github.com/least106/MomentTransfer/internal/errors"
)

// Encoding names reported alongside decoded content.
const (
	EncodingUTF8    = "utf-8"
	EncodingGBK     = "gbk"
	EncodingLatin1  = "latin-1"
	EncodingUnknown = ""
)

// ReadLines reads a text file trying UTF-8 first, then GBK, then Latin-1,
// stopping at the first encoding that decodes cleanly. Files containing NUL
// bytes are binary, not text in any of the three encodings, and fail with a
// format error. maxLines <= 0 returns every line.
func ReadLines(path string, maxLines int) ([]string, string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, EncodingUnknown, apperrors.Wrap(apperrors.CodeFormat, err,
			"cannot read %s", path)
	}

	text, enc, err := DecodeText(data)
	if err != nil {
		return nil, EncodingUnknown, apperrors.Wrap(apperrors.CodeFormat, err,
			"cannot decode %s", path)
	}

	lines := splitLines(text)
	if maxLines > 0 && len(lines) > maxLines {
		lines = lines[:maxLines]
	}
	return lines, enc, nil
}

// DecodeText decodes raw bytes through the fixed encoding fallback chain and
// reports which encoding succeeded.
func DecodeText(data []byte) (string, string, error) {
	if bytes.IndexByte(data, 0) >= 0 {
		return "", EncodingUnknown, apperrors.New(apperrors.CodeFormat,
			"content is not text in any supported encoding (utf-8, gbk, latin-1)")
	}

	if utf8.Valid(data) {
		return string(data), EncodingUTF8, nil
	}

	// GBK decoding substitutes the replacement rune for invalid sequences,
	// so a clean decode is one without it.
	if decoded, err := simplifiedchinese.GBK.NewDecoder().Bytes(data); err == nil &&
		!bytes.ContainsRune(decoded, utf8.RuneError) {
		return string(decoded), EncodingGBK, nil
	}

	// Latin-1 maps every byte to a code point, so this step cannot fail.
	decoded, err := charmap.ISO8859_1.NewDecoder().Bytes(data)
	if err != nil {
		return "", EncodingUnknown, apperrors.Wrap(apperrors.CodeFormat, err,
			"content is not text in any supported encoding (utf-8, gbk, latin-1)")
	}
	return string(decoded), EncodingLatin1, nil
}

func splitLines(text string) []string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = strings.TrimSuffix(text, "\n")
	if text == "" {
		return nil
	}
	return strings.Split(text, "\n")
}
