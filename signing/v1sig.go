// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

// Package signing is a read-only inspector for the v1 (JAR) Android
// signing scheme: it decodes the PKCS#7 SignedData blob an APK carries
// at META-INF/*.RSA (or .DSA/.EC) and surfaces the signer's certificate
// fields. No trust-chain verification, no OCSP/CRL checking, nothing
// that would need network access or a system trust store — a v1
// signature file is the PKCS#7 blob, full stop.
package signing

import (
	"archive/zip"
	"encoding/hex"
	"errors"
	"io"
	"reflect"
	"strings"
	"time"

	"go.mozilla.org/pkcs7"

	"github.com/saferwall/dxscan/dxerr"
)

// ErrNoV1Signature is reported when an archive carries no
// META-INF/*.RSA, *.DSA, or *.EC signature block file.
var ErrNoV1Signature = errors.New("signing: no v1 signature block file found")

// SignerInfo wraps the fields of a v1 signer's certificate dxscan keeps
// around.
type SignerInfo struct {
	// BlockFile is the META-INF member the signature was read from,
	// e.g. "META-INF/CERT.RSA".
	BlockFile string

	Issuer             string
	Subject            string
	NotBefore          time.Time
	NotAfter           time.Time
	SerialNumber       string
	SignatureAlgorithm string
	PublicKeyAlgorithm string

	// DigestAlgorithms lists the digest OIDs the PKCS#7 SignerInfo
	// recorded, in encounter order.
	DigestAlgorithms []string
}

// ParseBlock decodes one META-INF signature block file's raw bytes (the
// content of a .RSA/.DSA/.EC member) into a SignerInfo. It performs no
// signature or chain verification — static structural inspection only,
// not trust evaluation.
func ParseBlock(blockFile string, data []byte) (*SignerInfo, error) {
	p7, err := pkcs7.Parse(data)
	if err != nil {
		return nil, dxerr.ErrMalformedArchive
	}
	if len(p7.Signers) == 0 {
		return nil, dxerr.ErrMalformedArchive
	}

	info := &SignerInfo{BlockFile: blockFile}
	serialNumber := p7.Signers[0].IssuerAndSerialNumber.SerialNumber
	for _, cert := range p7.Certificates {
		if !reflect.DeepEqual(cert.SerialNumber, serialNumber) {
			continue
		}
		info.SerialNumber = hex.EncodeToString(cert.SerialNumber.Bytes())
		info.SignatureAlgorithm = cert.SignatureAlgorithm.String()
		info.PublicKeyAlgorithm = cert.PublicKeyAlgorithm.String()
		info.NotBefore = cert.NotBefore
		info.NotAfter = cert.NotAfter
		info.Issuer = distinguishedName(cert.Issuer.Country, cert.Issuer.Province,
			cert.Issuer.Locality, cert.Issuer.Organization, cert.Issuer.CommonName)
		info.Subject = distinguishedName(cert.Subject.Country, cert.Subject.Province,
			cert.Subject.Locality, cert.Subject.Organization, cert.Subject.CommonName)
		break
	}
	for _, signer := range p7.Signers {
		info.DigestAlgorithms = append(info.DigestAlgorithms, signer.DigestAlgorithm.Algorithm.String())
	}
	return info, nil
}

// distinguishedName assembles a human-readable issuer/subject string
// from a pkix.Name's components, country through common name.
func distinguishedName(country, province, locality, organization []string, commonName string) string {
	var parts []string
	if len(country) > 0 {
		parts = append(parts, country[0])
	}
	if len(province) > 0 {
		parts = append(parts, province[0])
	}
	if len(locality) > 0 {
		parts = append(parts, locality[0])
	}
	if len(organization) > 0 {
		parts = append(parts, organization[0])
	}
	parts = append(parts, commonName)
	return strings.Join(parts, ", ")
}

// isV1BlockMember reports whether name is a META-INF v1 signature block
// file per the Android v1 scheme (one of .RSA/.DSA/.EC, case
// insensitive).
func isV1BlockMember(name string) bool {
	if !strings.HasPrefix(name, "META-INF/") {
		return false
	}
	upper := strings.ToUpper(name)
	return strings.HasSuffix(upper, ".RSA") || strings.HasSuffix(upper, ".DSA") || strings.HasSuffix(upper, ".EC")
}

// ExtractFromArchive opens an APK (a standard ZIP archive) and parses
// every META-INF v1 signature block file it finds.
func ExtractFromArchive(path string) ([]*SignerInfo, error) {
	r, err := zip.OpenReader(path)
	if err != nil {
		return nil, dxerr.ErrImageNotFound
	}
	defer r.Close()

	var out []*SignerInfo
	for _, f := range r.File {
		if !isV1BlockMember(f.Name) {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return nil, err
		}
		data, err := io.ReadAll(rc)
		rc.Close()
		if err != nil {
			return nil, err
		}
		info, err := ParseBlock(f.Name, data)
		if err != nil {
			continue
		}
		out = append(out, info)
	}
	if len(out) == 0 {
		return nil, ErrNoV1Signature
	}
	return out, nil
}
