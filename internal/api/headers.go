package api

import (
	"math/rand/v2"
	"net/http"
)

// Browser User-Agent strings sent by the unauthenticated ElevenLabs mode.
var userAgents = []string{
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/127.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64; rv:127.0) Gecko/20100101 Firefox/127.0",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.5 Safari/605.1.15",
	"Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/126.0.0.0 Safari/537.36",
}

var acceptLanguages = []string{
	"en-US,en;q=0.9",
	"en-GB,en;q=0.9",
	"en-US,en;q=0.5",
}

// browserHeaders returns headers resembling a browser tab on site, with a
// randomized User-Agent and Accept-Language.
//
// Accept-Encoding is left unset so the transport decompresses gzip itself.
func browserHeaders(site string) http.Header {
	h := make(http.Header)
	h.Set("Accept", "*/*")
	h.Set("Origin", site)
	h.Set("Referer", site+"/")
	h.Set("Sec-Fetch-Dest", "empty")
	h.Set("Sec-Fetch-Mode", "cors")
	h.Set("Sec-Fetch-Site", "same-site")
	h.Set("User-Agent", userAgents[rand.IntN(len(userAgents))])
	h.Set("Accept-Language", acceptLanguages[rand.IntN(len(acceptLanguages))])
	return h
}

// authHeader returns a header with a single key set.
func authHeader(key, value string) http.Header {
	h := make(http.Header)
	h.Set(key, value)
	return h
}
