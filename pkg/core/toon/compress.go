package toon

import (
	"encoding/base64"
	"fmt"
	"strings"

	"github.com/klauspost/compress/zstd"
	"github.com/zeebo/xxh3"
)

// Транспортная обертка для больших блоков нотации: zstd сжатие,
// base64 кодирование и xxh3 контрольная сумма. Формат кадра:
//
//	toon+zstd;xxh3=<hex>;<base64 данные>
//
// Блоки меньше MinCompressSize передавать в сыром виде - сжатие
// коротких блоков увеличивает их размер.

const (
	framePrefix = "toon+zstd;xxh3="

	// MinCompressSize - минимальный размер блока для выгоды от сжатия
	MinCompressSize = 1024
)

// CompressText сжимает текстовый блок нотации для передачи.
// level: 1 (быстрее) - 19 (плотнее), 3 - разумный баланс.
func CompressText(text string, level int) (string, error) {
	if level < 1 {
		level = 1
	}
	if level > 19 {
		level = 19
	}

	encoder, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.EncoderLevelFromZstd(level)))
	if err != nil {
		return "", fmt.Errorf("failed to create zstd encoder: %w", err)
	}
	defer encoder.Close()

	compressed := encoder.EncodeAll([]byte(text), nil)
	checksum := xxh3.Hash(compressed)
	encoded := base64.StdEncoding.EncodeToString(compressed)

	return fmt.Sprintf("%s%016x;%s", framePrefix, checksum, encoded), nil
}

// DecompressText распаковывает кадр, созданный CompressText.
// Текст без префикса кадра возвращается как есть, поэтому получатель
// может обрабатывать сжатые и сырые блоки одним вызовом.
func DecompressText(text string) (string, error) {
	if !strings.HasPrefix(text, framePrefix) {
		return text, nil
	}

	rest := text[len(framePrefix):]
	sep := strings.IndexByte(rest, ';')
	if sep < 0 {
		return "", fmt.Errorf("malformed frame: missing data section")
	}

	var checksum uint64
	if _, err := fmt.Sscanf(rest[:sep], "%016x", &checksum); err != nil {
		return "", fmt.Errorf("malformed frame checksum: %w", err)
	}

	compressed, err := base64.StdEncoding.DecodeString(rest[sep+1:])
	if err != nil {
		return "", fmt.Errorf("failed to decode base64 data: %w", err)
	}

	if h := xxh3.Hash(compressed); h != checksum {
		return "", fmt.Errorf("checksum mismatch: frame %016x, computed %016x", checksum, h)
	}

	decoder, err := zstd.NewReader(nil)
	if err != nil {
		return "", fmt.Errorf("failed to create zstd decoder: %w", err)
	}
	defer decoder.Close()

	decompressed, err := decoder.DecodeAll(compressed, nil)
	if err != nil {
		return "", fmt.Errorf("failed to decompress: %w", err)
	}

	return string(decompressed), nil
}

// ShouldCompress определяет, стоит ли сжимать блок данного размера
func ShouldCompress(size int) bool {
	return size >= MinCompressSize
}
