// Package textutil provides filename sanitization for archive names and a
// small token fingerprint used to rank search candidates against a query.
package textutil
