package socks5

// Version is the SOCKS protocol version.
const Version = 0x05

// Commands (CMD).
const (
	CmdConnect      = 0x01
	CmdBind         = 0x02
	CmdUDPAssociate = 0x03
)

// Address types (ATYP).
const (
	AddrTypeIPv4   = 0x01
	AddrTypeDomain = 0x03
	AddrTypeIPv6   = 0x04
)

// Authentication methods (METHOD).
const (
	MethodNoAuth       = 0x00
	MethodNoAcceptable = 0xFF
)

// Reply codes (REP) as defined in RFC 1928 section 6.
const (
	RepSuccess              = 0x00
	RepGeneralFailure       = 0x01
	RepConnectionNotAllowed = 0x02
	RepNetworkUnreachable   = 0x03
	RepHostUnreachable      = 0x04
	RepConnectionRefused    = 0x05
	RepTTLExpired           = 0x06
	RepCommandNotSupported  = 0x07
	RepAddrTypeNotSupported = 0x08
)

const (
	// MaxDomainLen is the longest domain name a one-octet length prefix can
	// describe.
	MaxDomainLen = 255

	// MaxAddressLen is the longest encoded address (ATYP, length, name).
	MaxAddressLen = 1 + 1 + MaxDomainLen

	headerLen = 3
	portLen   = 2
)
