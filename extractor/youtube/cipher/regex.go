package cipher

import (
	"crypto/sha1"
	"encoding/hex"
	"regexp"
	"strconv"
	"strings"
	"sync"

	"github.com/dlclark/regexp2"
)

// The regex parser recognises the classic three-operation signature scramble:
// a transform object whose methods reverse the array, splice its head, or
// swap element 0 with element N, and a decipher function that splits the
// signature, applies a call sequence, and joins it back.

type transformStep struct {
	op  string // rev, spl, swp
	arg int
}

var (
	stepCacheMu sync.Mutex
	stepCache   = make(map[string][]transformStep)

	decipherFnRe = regexp.MustCompile(`function(?:\s+[a-zA-Z0-9$]+)?\s*\(\s*([a-zA-Z0-9$]+)\s*\)\s*\{([^{}]*?\.split\(""\)[^{}]*?\.join\(""\)[^{}]*?)\}`)
	reverseDefRe = regexp.MustCompile(`([a-zA-Z0-9$]+)\s*:\s*function\s*\(\s*[a-zA-Z0-9$]+\s*\)\s*\{\s*[a-zA-Z0-9$]+\.reverse\(\s*\)`)
	spliceDefRe  = regexp.MustCompile(`([a-zA-Z0-9$]+)\s*:\s*function\s*\(\s*[a-zA-Z0-9$]+\s*,\s*[a-zA-Z0-9$]+\s*\)\s*\{\s*[a-zA-Z0-9$]+\.splice\(`)
	// The backreference to the parameter name needs regexp2; stdlib RE2
	// cannot express it.
	swapDefRe = regexp2.MustCompile(`([a-zA-Z0-9$]+)\s*:\s*function\s*\(\s*([a-zA-Z0-9$]+)\s*,\s*[a-zA-Z0-9$]+\s*\)\s*\{\s*var\s+[a-zA-Z0-9$]+\s*=\s*\2\[0\]`, 0)
)

func cacheKeyForJS(playerJS string) string {
	h := sha1.Sum([]byte(playerJS))
	return hex.EncodeToString(h[:])
}

// tryRegexDecipher applies the parsed transform sequence to signature
// without executing any JavaScript. ok is false when the script's shape is
// not recognised and the caller must fall back to a VM.
func tryRegexDecipher(playerJS, signature string) (string, bool) {
	key := cacheKeyForJS(playerJS)

	stepCacheMu.Lock()
	steps, cached := stepCache[key]
	stepCacheMu.Unlock()

	if !cached {
		steps = parseTransformSteps(playerJS)
		if steps == nil {
			return "", false
		}
		stepCacheMu.Lock()
		stepCache[key] = steps
		stepCacheMu.Unlock()
	}
	if len(steps) == 0 {
		return "", false
	}

	r := []rune(signature)
	for _, s := range steps {
		switch s.op {
		case "rev":
			reverseRunes(r)
		case "spl":
			if s.arg < 0 || s.arg > len(r) {
				return "", false
			}
			r = r[s.arg:]
		case "swp":
			if len(r) == 0 {
				return "", false
			}
			i := s.arg % len(r)
			r[0], r[i] = r[i], r[0]
		}
	}
	return string(r), true
}

func parseTransformSteps(playerJS string) []transformStep {
	m := decipherFnRe.FindStringSubmatch(playerJS)
	if m == nil {
		return nil
	}
	param, body := m[1], m[2]

	// Method-name → operation mapping from the transform object definitions.
	ops := map[string]string{}
	if mm := reverseDefRe.FindStringSubmatch(playerJS); mm != nil {
		ops[mm[1]] = "rev"
	}
	if mm := spliceDefRe.FindStringSubmatch(playerJS); mm != nil {
		ops[mm[1]] = "spl"
	}
	if mm, err := swapDefRe.FindStringMatch(playerJS); err == nil && mm != nil {
		ops[mm.GroupByNumber(1).String()] = "swp"
	}
	if len(ops) == 0 {
		return nil
	}

	callRe := regexp.MustCompile(`[a-zA-Z0-9$]+\.([a-zA-Z0-9$]+)\(` + regexp.QuoteMeta(param) + `\s*,\s*(\d+)\s*\)`)
	var steps []transformStep
	for _, call := range callRe.FindAllStringSubmatch(body, -1) {
		op, ok := ops[call[1]]
		if !ok {
			continue
		}
		n, err := strconv.Atoi(call[2])
		if err != nil {
			return nil
		}
		steps = append(steps, transformStep{op: op, arg: n})
	}
	if len(steps) == 0 || !strings.Contains(body, param+`.split("")`) {
		return nil
	}
	return steps
}

func reverseRunes(r []rune) {
	for i, j := 0, len(r)-1; i < j; i, j = i+1, j-1 {
		r[i], r[j] = r[j], r[i]
	}
}
