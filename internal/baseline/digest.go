package baseline

import (
	"encoding/hex"
	"fmt"

	"lukechampine.com/blake3"

	"github.com/roach88/eagraph/internal/model"
)

// DigestDomain separates baseline digests from any other BLAKE3 use.
const DigestDomain = "eagraph/baseline/v1"

// hashWithDomain hashes domain, a NUL separator, then data.
func hashWithDomain(domain string, data []byte) string {
	h := blake3.New(32, nil)
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// computeDigest hashes the canonical JSON of the captured content.
// Identity fields (id, name, timestamps) are not part of the digest.
func computeDigest(elements []model.Element, relationships []model.Relationship) (string, error) {
	els := make(model.Array, 0, len(elements))
	for _, el := range elements {
		rec := el.Record()
		els = append(els, model.Object{
			"id":         model.String(rec.ID),
			"type":       model.String(rec.Type),
			"attributes": rec.Attributes,
		})
	}
	rels := make(model.Array, 0, len(relationships))
	for _, rel := range relationships {
		attrs := rel.Attributes
		if attrs == nil {
			attrs = model.Object{}
		}
		rels = append(rels, model.Object{
			"id":                model.String(rel.ID),
			"relationshipType":  model.String(string(rel.Type)),
			"sourceElementId":   model.String(rel.SourceElementID),
			"sourceElementType": model.String(string(rel.SourceElementType)),
			"targetElementId":   model.String(rel.TargetElementID),
			"targetElementType": model.String(string(rel.TargetElementType)),
			"direction":         model.String(string(rel.Direction)),
			"attributes":        attrs,
		})
	}
	data, err := model.MarshalCanonical(model.Object{"elements": els, "relationships": rels})
	if err != nil {
		return "", fmt.Errorf("canonical baseline content: %w", err)
	}
	return hashWithDomain(DigestDomain, data), nil
}
