package http1

type parserState uint8

const (
	eLeadingCRLF parserState = iota
	eMethod
	eURI
	eProto
	eProtoCR
	eHeaderLine
	eHeaderKey
	eHeaderValueLead
	eHeaderValue
	eHeaderValueCR
	eHeadersEndCR
	eDone
)
