package models

import "fmt"

type Provider string

const (
	ProviderTwitter   Provider = "twitter"
	ProviderLinkedIn  Provider = "linkedin"
	ProviderInstagram Provider = "instagram"
	ProviderThreads   Provider = "threads"
)

var providers = map[Provider]struct{}{
	ProviderTwitter:   {},
	ProviderLinkedIn:  {},
	ProviderInstagram: {},
	ProviderThreads:   {},
}

func ParseProvider(s string) (Provider, error) {
	p := Provider(s)
	if _, ok := providers[p]; !ok {
		return "", fmt.Errorf("unknown provider %q", s)
	}
	return p, nil
}
