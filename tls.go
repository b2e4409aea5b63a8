package main

import (
	"crypto/tls"
	"fmt"
	"io"
	"log"
	"strings"
)

func writeTLSSupportedCipherStrings(w io.Writer, min uint16) error {
	for _, c := range tls.CipherSuites() {
		var found bool
		for _, v := range c.SupportedVersions {
			if v >= min {
				found = true
			}
		}
		if !found {
			continue
		}
		if _, err := w.Write([]byte(c.Name + "\n")); err != nil {
			return err
		}
	}
	return nil
}

// getTLSMinVersion converts a version string into a TLS version ID.
func getTLSMinVersion(v string) uint16 {
	switch v {
	case "1.0":
		return tls.VersionTLS10
	case "1.1":
		return tls.VersionTLS11
	case "1.2", "":
		return tls.VersionTLS12
	case "1.3":
		return tls.VersionTLS13
	default:
		log.Fatalln("error: unknown minimum TLS version:", v)
		return 0
	}
}

// getTLSCipherSuites converts a comma separated list of cipher suites into a
// slice of TLS cipher suite IDs. An empty list keeps the Go defaults.
func getTLSCipherSuites(v string) []uint16 {
	supported := tls.CipherSuites()
	if v == "" {
		return nil
	}

	var ciphers []uint16
	for _, name := range strings.Split(v, ",") {
		name = strings.TrimSpace(name)
		var found bool
		for _, c := range supported {
			if name == c.Name {
				ciphers = append(ciphers, c.ID)
				found = true
				break
			}
		}
		if !found {
			log.Fatalln("error: unknown TLS cipher suite:", name)
		}
	}
	return ciphers
}

func tlsConfig() (*tls.Config, error) {
	min := getTLSMinVersion(*tlsMinVersion)
	if min < tls.VersionTLS12 {
		return nil, fmt.Errorf("minimum TLS version %s is not allowed for the API", *tlsMinVersion)
	}
	return &tls.Config{
		CipherSuites:     getTLSCipherSuites(*tlsCipherSuites),
		CurvePreferences: []tls.CurveID{tls.X25519, tls.CurveP384, tls.CurveP256},
		MinVersion:       min,
	}, nil
}
