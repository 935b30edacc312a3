package local

import (
	"fmt"
	"strings"

	"learnplatform/internal/infrastructure/store"
)

// Badger keys:
//
//	item:  "t" 0 PK 0 SK
//	index: "i" 0 INDEX 0 indexPK 0 indexSK 0 PK 0 SK
//
// Index entries carry the primary key as value and are resolved on read.
const sep = "\x00"

func validateKey(k store.Key) error {
	if k.PK == "" || k.SK == "" {
		return fmt.Errorf("key requires both %s and %s", store.AttrPK, store.AttrSK)
	}
	if strings.Contains(k.PK, sep) || strings.Contains(k.SK, sep) {
		return fmt.Errorf("key %q/%q contains a NUL byte", k.PK, k.SK)
	}
	return nil
}

func itemKey(k store.Key) []byte {
	return []byte("t" + sep + k.PK + sep + k.SK)
}

func indexKey(idx store.Index, pk, sk string, primary store.Key) []byte {
	return []byte("i" + sep + string(idx) + sep + pk + sep + sk + sep + primary.PK + sep + primary.SK)
}

func partitionPrefix(idx store.Index, pk, skPrefix string) []byte {
	if idx == store.Primary {
		return []byte("t" + sep + pk + sep + skPrefix)
	}
	return []byte("i" + sep + string(idx) + sep + pk + sep + skPrefix)
}

func encodePrimary(k store.Key) []byte {
	return []byte(k.PK + sep + k.SK)
}

func decodePrimary(b []byte) (store.Key, error) {
	pk, sk, ok := strings.Cut(string(b), sep)
	if !ok {
		return store.Key{}, fmt.Errorf("corrupt index entry %q", b)
	}
	return store.Key{PK: pk, SK: sk}, nil
}

// indexKeys lists the index entries an item projects into. Items lacking either
// key attribute of an index are absent from it.
func indexKeys(item store.Item) [][]byte {
	if item == nil {
		return nil
	}
	primary := store.KeyOf(item)
	var out [][]byte
	for _, idx := range store.Indexes {
		pkAttr, skAttr := idx.KeyAttrs()
		pk, sk := store.StringAttr(item, pkAttr), store.StringAttr(item, skAttr)
		if pk == "" || sk == "" {
			continue
		}
		out = append(out, indexKey(idx, pk, sk, primary))
	}
	return out
}
