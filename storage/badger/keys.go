package badger

import (
	"encoding/binary"
	"fmt"
)

// Key prefixes for different record types. Every tenant-owned key embeds the
// client ID right after the prefix, so a prefix scan over one tenant can
// never touch another tenant's records.
const (
	tenantRecordPrefix = "tenrec"
	usageRecordPrefix  = "usgrec"
	docManifestPrefix  = "docman"
	chunkRecordPrefix  = "chkrec"
)

// makeTenantKey generates the key of a tenant record.
func makeTenantKey(clientID string) []byte {
	return []byte(fmt.Sprintf("%s:%s", tenantRecordPrefix, clientID))
}

// makeTenantScanPrefix generates the prefix for scanning all tenant records.
func makeTenantScanPrefix() []byte {
	return []byte(tenantRecordPrefix + ":")
}

// makeUsageKey generates the key of a tenant's usage counter.
func makeUsageKey(clientID string) []byte {
	return []byte(fmt.Sprintf("%s:%s", usageRecordPrefix, clientID))
}

// makeDocKey generates the key of a document manifest.
// Format: prefix:clientID:docID
func makeDocKey(clientID, docID string) []byte {
	return []byte(fmt.Sprintf("%s:%s:%s", docManifestPrefix, clientID, docID))
}

// makeDocScanPrefix generates the prefix for scanning a tenant's manifests.
func makeDocScanPrefix(clientID string) []byte {
	return []byte(fmt.Sprintf("%s:%s:", docManifestPrefix, clientID))
}

// makeChunkKey generates the key of a stored chunk.
// Format: prefix:clientID:docID:ordinal, with the ordinal written BigEndian
// so lexicographic iteration follows chunk order.
func makeChunkKey(clientID, docID string, ordinal int) []byte {
	prefix := makeChunkDocPrefix(clientID, docID)
	buf := make([]byte, len(prefix)+8)
	offset := copy(buf, prefix)
	binary.BigEndian.PutUint64(buf[offset:], uint64(ordinal))
	return buf
}

// makeChunkDocPrefix generates the prefix covering all chunks of one document.
func makeChunkDocPrefix(clientID, docID string) []byte {
	return []byte(fmt.Sprintf("%s:%s:%s:", chunkRecordPrefix, clientID, docID))
}

// makeChunkScanPrefix generates the prefix covering all chunks of one tenant.
func makeChunkScanPrefix(clientID string) []byte {
	return []byte(fmt.Sprintf("%s:%s:", chunkRecordPrefix, clientID))
}
