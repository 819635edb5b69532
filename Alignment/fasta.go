package Alignment

import (
	"bufio"
	"fmt"
	"io"
	"strings"
)

// nucleotideCode maps a single FASTA character to this package's encoded
// byte form. Ambiguous/gap characters and anything unrecognized collapse
// to 0xFF ("completely ambiguous"), which a Kernel.ParsimonyKernel is
// expected to treat as "matches anything".
func nucleotideCode(c byte) byte {
	switch c {
	case 'A', 'a':
		return 0
	case 'C', 'c':
		return 1
	case 'G', 'g':
		return 2
	case 'T', 't', 'U', 'u':
		return 3
	default:
		return 0xFF
	}
}

// LoadFASTA reads a minimal FASTA file (">name" headers, sequence lines
// concatenated until the next header) into a fresh Alignment. It is
// intentionally narrow — no IUPAC ambiguity codes beyond "anything else is
// fully ambiguous", no interleaved formats — since a full alignment
// parser is itself named as an external collaborator (spec.md §1).
func LoadFASTA(r io.Reader) (*Alignment, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)

	var names []string
	var rawSeqs []strings.Builder
	var current *strings.Builder

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if line[0] == '>' {
			names = append(names, strings.TrimSpace(line[1:]))
			rawSeqs = append(rawSeqs, strings.Builder{})
			current = &rawSeqs[len(rawSeqs)-1]
			continue
		}
		if current == nil {
			return nil, fmt.Errorf("Alignment: sequence data before any header")
		}
		current.WriteString(line)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}

	aln := New()
	for i, name := range names {
		seq := rawSeqs[i].String()
		encoded := make([]byte, len(seq))
		for j := 0; j < len(seq); j++ {
			encoded[j] = nucleotideCode(seq[j])
		}
		if _, err := aln.AddSequence(name, encoded); err != nil {
			return nil, err
		}
	}
	aln.Compact()
	return aln, nil
}
