package irfile

import "errors"

// Errors returned by Decode and Load. Every failure wraps exactly one of
// them; CodeOf maps it to a Code for display on a device.
var (
	ErrNoRIFF        = errors.New("irfile: not a RIFF file")
	ErrNoWAVE        = errors.New("irfile: RIFF file is not WAVE")
	ErrNoHeader      = errors.New("irfile: truncated header")
	ErrNotPCM        = errors.New("irfile: audio format is not integer PCM")
	ErrBadChannels   = errors.New("irfile: only mono or stereo files are supported")
	ErrBadSampleRate = errors.New("irfile: unsupported sample rate")
	ErrBadByteRate   = errors.New("irfile: byte rate does not match format")
	ErrBadBitDepth   = errors.New("irfile: only 8, 16 or 24 bit files are supported")
	ErrNoData        = errors.New("irfile: no sample data")
	ErrNoFormat      = errors.New("irfile: no format chunk")
	ErrFileNotFound  = errors.New("irfile: file not found")
)

// Code enumerates load results.
type Code uint8

const (
	CodeOK Code = iota
	CodeNoRIFF
	CodeNoWAVE
	CodeNoHeader
	CodeNotPCM
	CodeBadChannels
	CodeBadSampleRate
	CodeBadByteRate
	CodeBadBitDepth
	CodeNoData
	CodeNoFormat
	CodeFileNotFound
	CodeUnknown
)

var codeErrors = [...]error{
	CodeNoRIFF:        ErrNoRIFF,
	CodeNoWAVE:        ErrNoWAVE,
	CodeNoHeader:      ErrNoHeader,
	CodeNotPCM:        ErrNotPCM,
	CodeBadChannels:   ErrBadChannels,
	CodeBadSampleRate: ErrBadSampleRate,
	CodeBadByteRate:   ErrBadByteRate,
	CodeBadBitDepth:   ErrBadBitDepth,
	CodeNoData:        ErrNoData,
	CodeNoFormat:      ErrNoFormat,
	CodeFileNotFound:  ErrFileNotFound,
}

// CodeOf returns the code for err: CodeOK for nil, CodeUnknown for an
// error that wraps none of the package errors.
func CodeOf(err error) Code {
	if err == nil {
		return CodeOK
	}
	for c, e := range codeErrors {
		if e != nil && errors.Is(err, e) {
			return Code(c)
		}
	}
	return CodeUnknown
}

var codeNames = [...]string{
	CodeOK:            "OK",
	CodeNoRIFF:        "no RIFF",
	CodeNoWAVE:        "no WAVE",
	CodeNoHeader:      "no header",
	CodeNotPCM:        "not PCM",
	CodeBadChannels:   "bad channels",
	CodeBadSampleRate: "bad sample rate",
	CodeBadByteRate:   "bad byte rate",
	CodeBadBitDepth:   "bad bit depth",
	CodeNoData:        "no data",
	CodeNoFormat:      "no format",
	CodeFileNotFound:  "file not found",
	CodeUnknown:       "unknown",
}

func (c Code) String() string {
	if int(c) < len(codeNames) {
		return codeNames[c]
	}
	return "unknown"
}
