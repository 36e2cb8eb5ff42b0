package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"strings"

	"github.com/danmuck/covertfs/internal/medium"
	"github.com/danmuck/covertfs/internal/protocol"
)

var fillerWords = []string{
	"able", "acid", "aged", "also", "area", "army", "away", "baby", "back", "ball",
	"band", "bank", "base", "bath", "bear", "beat", "been", "beer", "bell", "belt",
	"best", "bill", "bird", "blow", "blue", "boat", "body", "bomb", "bond", "bone",
	"book", "boom", "born", "boss", "both", "bowl", "bulk", "burn", "bush", "busy",
	"call", "calm", "came", "camp", "card", "care", "case", "cash", "cast", "cell",
	"chat", "chip", "city", "club", "coal", "coat", "code", "cold", "come", "cook",
	"cool", "cope", "copy", "core", "cost", "crew", "crop", "dark", "data", "date",
	"\n",
}

// fillerName is the i-th provisioned object: a0.txt through z0.txt, then a1.txt.
func fillerName(i int) string {
	return fmt.Sprintf("%c%d.txt", 'a'+i%26, i/26)
}

// fillerText is 1 to 256 random words.
func fillerText(rng *rand.Rand) []byte {
	n := 1 + rng.Intn(256)
	words := make([]string, n)
	for i := range words {
		words[i] = fillerWords[rng.Intn(len(fillerWords))]
	}
	return []byte(strings.Join(words, " "))
}

// provision creates n filler objects, skipping names that already exist, and
// reports how many it created.
func provision(ctx context.Context, m medium.Medium, n int, rng *rand.Rand) (int, error) {
	p, ok := m.(medium.Provisioner)
	if !ok {
		return 0, fmt.Errorf("medium %T cannot create objects", m)
	}
	created := 0
	for i := 0; i < n; i++ {
		err := p.Create(ctx, fillerName(i), fillerText(rng))
		if errors.Is(err, medium.ErrExists) {
			continue
		}
		if err != nil {
			return created, err
		}
		created++
	}
	return created, nil
}

// inspect prints one line per object: id, content size, derived byte, and
// fields.
func inspect(ctx context.Context, m medium.Medium, out io.Writer) error {
	ids, err := m.List(ctx)
	if err != nil {
		return err
	}
	for _, id := range ids {
		content, err := m.ReadContent(ctx, id)
		if err != nil {
			return err
		}
		fields, err := m.ReadFields(ctx, id)
		if err != nil && !errors.Is(err, medium.ErrFieldsUnsupported) {
			return err
		}
		fmt.Fprintf(out, "%s\tbytes=%d\tbyte=%d\tfields=%d\n", id, len(content), protocol.HashByte(content), len(fields))
	}
	return nil
}
