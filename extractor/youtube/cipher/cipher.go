// Package cipher resolves YouTube format URLs that are withheld behind a
// signatureCipher. It fetches the site's player.js, tries a pure-regex
// transform parser first, and falls back to executing the decipher routine
// in a JavaScript VM (goja, then otto) when the script defeats the parser.
package cipher

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/dop251/goja"
	"github.com/robertkrimen/otto"

	"github.com/shaunleeweirong/video-downloader/internal/logger"
)

const (
	ytBase           = "https://www.youtube.com"
	decipherFuncName = "decipher"
	ncodeFuncName    = "ncode"

	playerJSTTL = 10 * time.Minute
)

var (
	playerJSURLRegex = regexp.MustCompile(`"jsUrl":"([^"]+)"`)

	// ErrDecipherFailed indicates that neither the regex parser nor a JS
	// engine could recover the signature.
	ErrDecipherFailed = errors.New("decipher failed")
)

var log = logger.Get(logger.ComponentCipher)

// player.js cache by URL; bodies are a few hundred KB and change rarely.
var (
	playerJSCache   = make(map[string]playerJSCacheEntry)
	playerJSCacheMu sync.Mutex
)

type playerJSCacheEntry struct {
	body  []byte
	expAt time.Time
}

func getPlayerJS(httpClient *http.Client, playerJSURL string) ([]byte, error) {
	playerJSCacheMu.Lock()
	entry, ok := playerJSCache[playerJSURL]
	if ok && time.Now().Before(entry.expAt) {
		body := entry.body
		playerJSCacheMu.Unlock()
		return body, nil
	}
	playerJSCacheMu.Unlock()

	req, err := http.NewRequest(http.MethodGet, playerJSURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request for player.js: %w", err)
	}
	req.Header.Set("User-Agent", "Mozilla/5.0")
	resp, err := httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to download player.js: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read player.js content: %w", err)
	}

	playerJSCacheMu.Lock()
	playerJSCache[playerJSURL] = playerJSCacheEntry{body: body, expAt: time.Now().Add(playerJSTTL)}
	playerJSCacheMu.Unlock()
	return body, nil
}

// FetchPlayerJS finds the player.js URL by requesting the watch page and
// scraping the "jsUrl" field out of the embedded player config.
func FetchPlayerJS(httpClient *http.Client, videoURL string) (string, error) {
	req, err := http.NewRequest(http.MethodGet, videoURL, nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("User-Agent", "Mozilla/5.0")

	resp, err := httpClient.Do(req)
	if err != nil {
		return "", err
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", err
	}

	matches := playerJSURLRegex.FindSubmatch(body)
	if len(matches) < 2 || len(matches[1]) == 0 {
		return "", errors.New("could not find player js url in video page")
	}

	return ytBase + strings.ReplaceAll(string(matches[1]), `\/`, `/`), nil
}

// Decipher recovers a format signature. Fast path is the regex transform
// parser; slow path runs the script's decipher function in a VM.
func Decipher(httpClient *http.Client, playerJSURL, signature string) (string, error) {
	playerJS, err := getPlayerJS(httpClient, playerJSURL)
	if err != nil {
		return "", err
	}

	if out, ok := tryRegexDecipher(string(playerJS), signature); ok {
		log.Debug("signature deciphered via regex parser")
		return out, nil
	}

	out, err := runInVM(string(playerJS), decipherFuncName, signature, true)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrDecipherFailed, err)
	}
	return out, nil
}

// DecipherN decodes the throttling n-parameter when player.js defines
// ncode(); absent that, the original value is returned unchanged.
func DecipherN(httpClient *http.Client, playerJSURL, nval string) (string, error) {
	playerJS, err := getPlayerJS(httpClient, playerJSURL)
	if err != nil {
		return "", err
	}
	out, err := runInVM(string(playerJS), ncodeFuncName, nval, false)
	if err != nil {
		return nval, nil
	}
	return out, nil
}

// runInVM executes fn(arg) inside goja, falling back to otto. When required
// is false a missing function is not an error.
func runInVM(script, fn, arg string, required bool) (string, error) {
	if out, err := runGoja(script, fn, arg, required); err == nil {
		return out, nil
	} else if vmErr := err; vmErr != nil {
		log.Debug("goja failed for %s: %v, trying otto", fn, vmErr)
	}
	return runOtto(script, fn, arg, required)
}

func runGoja(script, fn, arg string, required bool) (string, error) {
	vm := goja.New()
	if _, err := vm.RunString(script); err != nil {
		return "", fmt.Errorf("failed to run player.js in goja: %w", err)
	}
	fnVal := vm.Get(fn)
	if fnVal == nil || goja.IsUndefined(fnVal) {
		if !required {
			return arg, nil
		}
		return "", fmt.Errorf("function %s not found", fn)
	}
	var call func(string) string
	if err := vm.ExportTo(fnVal, &call); err != nil {
		if !required {
			return arg, nil
		}
		return "", fmt.Errorf("function %s not found: %w", fn, err)
	}
	var out string
	err := func() (err error) {
		defer func() {
			if r := recover(); r != nil {
				err = fmt.Errorf("goja call panicked: %v", r)
			}
		}()
		out = call(arg)
		return nil
	}()
	if err != nil {
		return "", err
	}
	return out, nil
}

func runOtto(script, fn, arg string, required bool) (string, error) {
	vm := otto.New()
	if _, err := vm.Run(script); err != nil {
		return "", fmt.Errorf("failed to run player.js in otto: %w", err)
	}
	fnVal, err := vm.Get(fn)
	if err != nil || !fnVal.IsFunction() {
		if !required {
			return arg, nil
		}
		return "", fmt.Errorf("function %s not found", fn)
	}
	value, err := vm.Call(fn, nil, arg)
	if err != nil {
		return "", fmt.Errorf("failed to call %s: %w", fn, err)
	}
	result, err := value.ToString()
	if err != nil {
		return "", fmt.Errorf("%s did not return a string: %w", fn, err)
	}
	return result, nil
}
