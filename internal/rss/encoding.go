package rss

import (
	"fmt"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/ianaindex"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

var asciiEncoding = mustEncoding("US-ASCII")

func mustEncoding(name string) encoding.Encoding {
	enc, err := ianaindex.IANA.Encoding(name)
	if err != nil || enc == nil {
		panic(fmt.Sprintf("rss: encoding %s unavailable: %v", name, err))
	}
	return enc
}

// FoldASCII validates body as UTF-8 and re-encodes it as ASCII, replacing
// every non-ASCII code point with a decimal numeric character reference
// (é becomes &#233;). A leading byte order mark is dropped.
//
// References inside CDATA sections are not expanded again by the feed
// parser, so such text is stored in its escaped form.
func FoldASCII(body []byte) ([]byte, error) {
	t := transform.Chain(
		encoding.UTF8Validator,
		unicode.BOMOverride(transform.Nop),
		encoding.HTMLEscapeUnsupported(asciiEncoding.NewEncoder()),
	)
	out, _, err := transform.Bytes(t, body)
	if err != nil {
		return nil, fmt.Errorf("fold body to ascii: %w", err)
	}
	return out, nil
}
