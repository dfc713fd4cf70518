package domain

import (
	"strconv"

	"github.com/google/uuid"
)

var documentNamespace = uuid.MustParse("6f1c2a4e-3b7d-5e9a-8c41-2d5b9e7f0a13")

// DocumentID derives a stable id from a document's name and normalized text,
// so ingesting the same content twice yields the same id.
func DocumentID(filename, text string) string {
	return uuid.NewSHA1(documentNamespace, []byte(filename+"\x00"+text)).String()
}

// ChunkID derives a chunk id from its parent document and ordinal position.
func ChunkID(docID string, position int) string {
	ns, err := uuid.Parse(docID)
	if err != nil {
		ns = uuid.NewSHA1(documentNamespace, []byte(docID))
	}
	return uuid.NewSHA1(ns, []byte(strconv.Itoa(position))).String()
}
