package auctionapi

import (
	"strings"
	"testing"

	"github.com/peterldowns/testy/check"
)

func TestCOSE_Encode(t *testing.T) {
	coseBytes := COSE([]byte("mock-cose-receipt-data"))

	encoded := coseBytes.EncodeBase64()
	check.NotEqual(t, "", encoded)

	decoded, err := encoded.Decode()
	check.Nil(t, err)
	check.Equal(t, coseBytes, decoded)
}

func TestCOSE_EncodeURLSafe(t *testing.T) {
	coseBytes := COSE([]byte("mock-cose-receipt-data-for-url-encoding"))

	encoded := coseBytes.EncodeURLSafe()
	check.NotEqual(t, "", encoded)
	check.True(t, !strings.Contains(encoded.String(), "="))

	decoded, err := encoded.Decode()
	check.Nil(t, err)
	check.Equal(t, coseBytes, decoded)
}

func TestCOSE_CompressGzip(t *testing.T) {
	coseBytes := COSE([]byte("mock-cose-receipt-data-for-compression-testing"))

	compressed, err := coseBytes.CompressGzip()
	check.Nil(t, err)

	compressedStr := compressed.String()
	for _, char := range compressedStr {
		valid := (char >= 'A' && char <= 'Z') ||
			(char >= 'a' && char <= 'z') ||
			(char >= '0' && char <= '9') ||
			char == '-' || char == '_'
		check.True(t, valid)
	}

	again, err := coseBytes.CompressGzip()
	check.Nil(t, err)
	check.Equal(t, compressed, again)

	decompressed, err := compressed.Decompress()
	check.Nil(t, err)
	check.Equal(t, coseBytes, decompressed)
}

func TestCOSEBase64_Decode(t *testing.T) {
	tests := []struct {
		name    string
		input   COSEBase64
		wantErr bool
	}{
		{name: "valid base64", input: "bW9jay1jb3NlLXJlY2VpcHQ="},
		{name: "illegal characters", input: "not-valid-base64!!!@@@", wantErr: true},
		{name: "wrong padding", input: "abc", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := tt.input.Decode()
			if tt.wantErr {
				check.NotNil(t, err)
				check.True(t, strings.Contains(err.Error(), "decode COSE base64"))
				check.Nil(t, result)
			} else {
				check.Nil(t, err)
				check.Equal(t, "mock-cose-receipt", string(result))
			}
		})
	}
}

func TestCOSEBase64_CompressGzip(t *testing.T) {
	compressed, err := COSEBase64("bW9jay1jb3NlLXJlY2VpcHQ=").CompressGzip()
	check.Nil(t, err)
	decompressed, err := compressed.Decompress()
	check.Nil(t, err)
	check.Equal(t, "mock-cose-receipt", string(decompressed))

	_, err = COSEBase64("%%%").CompressGzip()
	check.NotNil(t, err)
}

func TestCOSEURLBase64_Decode(t *testing.T) {
	tests := []struct {
		input    COSEURLBase64
		expected string
	}{
		{"YWJj", "abc"},
		{"dGVzdA", "test"},
		{"dGVzdA==", "test"},
		{"dGVzdGluZw", "testing"},
	}
	for _, tt := range tests {
		result, err := tt.input.Decode()
		check.Nil(t, err)
		check.Equal(t, tt.expected, string(result))
	}
}

func TestCOSEGzip_Decompress_Invalid(t *testing.T) {
	_, err := COSEGzip("!!!invalid!!!").Decompress()
	check.NotNil(t, err)
	check.True(t, strings.Contains(err.Error(), "decode base64url"))

	_, err = COSEGzip(COSE("not gzip").EncodeURLSafe()).Decompress()
	check.NotNil(t, err)
	check.True(t, strings.Contains(err.Error(), "gzip"))
}
