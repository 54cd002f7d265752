package crypt

import "crypto/tls"

type Encryption uint8

const (
	Plain Encryption = 0
	SSL   Encryption = 1 << (iota - 1)
	TLSv10
	TLSv11
	TLSv12
	TLSv13
	Unknown
)

// FromTLSVersion maps tls.ConnectionState.Version into the encryption token.
func FromTLSVersion(ver uint16) Encryption {
	switch ver {
	case tls.VersionSSL30: //nolint:staticcheck
		return SSL
	case tls.VersionTLS10:
		return TLSv10
	case tls.VersionTLS11:
		return TLSv11
	case tls.VersionTLS12:
		return TLSv12
	case tls.VersionTLS13:
		return TLSv13
	default:
		return Unknown
	}
}

func (e Encryption) IsTLS() bool {
	return e&(SSL|TLSv10|TLSv11|TLSv12|TLSv13|Unknown) != 0
}

// ZeroCopy tells whether the data can be transferred bypassing the userspace, which is
// possible only on plain connections.
func (e Encryption) ZeroCopy() bool {
	return e == Plain
}
