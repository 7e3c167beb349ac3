package utils

import "time"

const ToolUserAgent = "vidgrab/1.0"
const TempDirName = ".vidgrab-temp"
const DefaultProbeTimeout = 20 * time.Second

var ytdlpReleaseBase = "https://github.com/yt-dlp/yt-dlp/releases/latest/download"

// Characters the host filesystem refuses in a file name. Everything else in a
// title is kept as-is.
var unixFilenameReplacer = map[rune]string{
	'/':    "_",
	'\x00': "",
}

var windowsFilenameReplacer = map[rune]string{
	'<':    "_",
	'>':    "_",
	':':    "_",
	'"':    "'",
	'/':    "_",
	'\\':   "_",
	'|':    "_",
	'?':    "",
	'*':    "",
	'\x00': "",
}
