package progress

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/dannav/hhmmss"
	"github.com/tanq16/vidgrab/internal/extractor"
	"github.com/tanq16/vidgrab/internal/utils"
)

// Sample is one progress observation from the extractor. Percent is -1 when unknown.
type Sample struct {
	Percent float64
	Speed   string
	ETA     time.Duration
	HasETA  bool
}

var (
	downloadLine = regexp.MustCompile(`^\[download\]\s+(\d+(?:\.\d+)?)%`)
	speedField   = regexp.MustCompile(`\sat\s+(.+?)(?:\s+ETA\s|\s+\(|$)`)
	etaField     = regexp.MustCompile(`\sETA\s+(\S+)`)
)

// ParseLine recognises the machine-readable template line and the extractor's default progress line.
func ParseLine(line string) (Sample, bool) {
	line = strings.TrimSpace(line)
	if strings.HasPrefix(line, extractor.ProgressPrefix) {
		return parseTemplate(strings.Fields(strings.TrimPrefix(line, extractor.ProgressPrefix)))
	}
	m := downloadLine.FindStringSubmatch(line)
	if m == nil {
		return Sample{}, false
	}
	percent, err := strconv.ParseFloat(m[1], 64)
	if err != nil {
		return Sample{}, false
	}
	s := Sample{Percent: percent}
	if sm := speedField.FindStringSubmatch(line); sm != nil {
		speed := strings.TrimSpace(sm[1])
		if !strings.HasPrefix(speed, "Unknown") {
			s.Speed = strings.Replace(speed, "iB/s", "B/s", 1)
		}
	}
	if em := etaField.FindStringSubmatch(line); em != nil {
		if eta, ok := parseClock(em[1]); ok {
			s.ETA, s.HasETA = eta, true
		}
	}
	return s, true
}

func parseTemplate(fields []string) (Sample, bool) {
	if len(fields) != 5 {
		return Sample{}, false
	}
	num := func(v string) (float64, bool) {
		f, err := strconv.ParseFloat(v, 64)
		return f, err == nil
	}
	s := Sample{Percent: -1}
	downloaded, okDownloaded := num(fields[0])
	total, okTotal := num(fields[1])
	if !okTotal || total <= 0 {
		total, okTotal = num(fields[2])
	}
	if okDownloaded && okTotal && total > 0 {
		s.Percent = min(downloaded/total*100, 100)
	}
	if speed, ok := num(fields[3]); ok {
		s.Speed = utils.FormatRate(speed)
	}
	if eta, ok := num(fields[4]); ok && eta >= 0 {
		s.ETA, s.HasETA = time.Duration(eta)*time.Second, true
	}
	return s, true
}

func parseClock(v string) (time.Duration, bool) {
	parts := strings.Split(v, ":")
	if len(parts) < 2 || len(parts) > 3 {
		return 0, false
	}
	for len(parts) < 3 {
		parts = append([]string{"00"}, parts...)
	}
	d, err := hhmmss.Parse(strings.Join(parts, ":"))
	if err != nil {
		return 0, false
	}
	return d, true
}

// FormatETA renders a duration as mm:ss, or hh:mm:ss past an hour.
func FormatETA(d time.Duration) string {
	d = d.Round(time.Second)
	h := int(d.Hours())
	m := int(d.Minutes()) % 60
	s := int(d.Seconds()) % 60
	if h > 0 {
		return strconv.Itoa(h) + ":" + pad(m) + ":" + pad(s)
	}
	return pad(m) + ":" + pad(s)
}

func pad(n int) string {
	if n < 10 {
		return "0" + strconv.Itoa(n)
	}
	return strconv.Itoa(n)
}
