// Package commands implements the goasics subcommands.
package commands

import (
	"context"
	"encoding/asn1"
	"fmt"
	"strconv"
	"strings"

	"github.com/willibrandon/goasics/asics"
	"github.com/willibrandon/goasics/asics/signatures"
	"github.com/willibrandon/goasics/cmd/goasics/cli"
	"github.com/willibrandon/goasics/cmd/goasics/output"
)

func openContainer(ctx context.Context, env *cli.Env, path string, opts ...asics.Option) (*asics.Container, error) {
	opts = append([]asics.Option{asics.WithLogger(env.Logger)}, opts...)
	return asics.Open(ctx, path, opts...)
}

// describeSignature renders one chain element. Token fields are left empty when the token
// cannot be parsed; Error then says why.
func describeSignature(i int, s signatures.Signature) output.Signature {
	d := output.Signature{Index: i, Profile: string(s.Profile())}
	switch sig := s.(type) {
	case *signatures.TimestampToken:
		d.Subject = sig.Subject()
		d.Archive = sig.IsArchiveTimestamp()
		info, err := sig.Info()
		if err != nil {
			d.Error = err.Error()
			return d
		}
		gen := info.GenTime.UTC()
		d.GenTime = &gen
		if info.SerialNumber != nil {
			d.SerialNumber = info.SerialNumber.Text(16)
		}
		if len(info.Policy) > 0 {
			d.Policy = info.Policy.String()
		}
		d.HashAlgorithm = info.HashAlgorithm.ShortName()
		if info.Certificate != nil {
			d.TSA = info.Certificate.Subject.String()
		}
	case *signatures.XAdESLongTermArchive:
		d.Subject = sig.ID()
	}
	return d
}

func parseOID(s string) (asn1.ObjectIdentifier, error) {
	parts := strings.Split(strings.TrimSpace(s), ".")
	if len(parts) < 2 {
		return nil, fmt.Errorf("invalid OID %q", s)
	}
	oid := make(asn1.ObjectIdentifier, len(parts))
	for i, p := range parts {
		n, err := strconv.Atoi(p)
		if err != nil || n < 0 {
			return nil, fmt.Errorf("invalid OID %q", s)
		}
		oid[i] = n
	}
	return oid, nil
}

func formatTime(d output.Signature) string {
	if d.GenTime == nil {
		return "-"
	}
	return d.GenTime.Format("2006-01-02 15:04:05Z")
}
