package project

import (
	"encoding/hex"
	"encoding/json"

	"github.com/pkg/errors"
	"golang.org/x/crypto/blake2b"
)

// hashedFields is the manifest subset the dependency manager folds into
// the lockfile's content-hash. Selection and ordering are part of the
// format: the encoder below sorts keys, so repeated runs are bit-stable.
var hashedFields = []string{
	"name",
	"version",
	"require",
	"require-dev",
	"repositories",
	"minimum-stability",
	"prefer-stable",
	"config",
}

// ContentHash computes the lockfile freshness hash over the canonical,
// key-sorted encoding of the manifest's relevant fields. Absent fields are
// omitted; of "config" only the "platform" key participates.
func ContentHash(manifestData []byte) (string, error) {
	var full map[string]interface{}

	err := json.Unmarshal(manifestData, &full)
	if err != nil {
		return "", errors.Wrap(err, "decoding package manifest")
	}

	subset := make(map[string]interface{})

	for _, field := range hashedFields {
		v, ok := full[field]
		if !ok {
			continue
		}

		if field == "config" {
			cfg, ok := v.(map[string]interface{})
			if !ok {
				continue
			}

			platform, ok := cfg["platform"]
			if !ok {
				continue
			}

			v = map[string]interface{}{"platform": platform}
		}

		subset[field] = v
	}

	// encoding/json sorts map keys, which gives us the canonical form.
	canonical, err := json.Marshal(subset)
	if err != nil {
		return "", errors.Wrap(err, "encoding canonical manifest subset")
	}

	sum := blake2b.Sum256(canonical)

	return hex.EncodeToString(sum[:]), nil
}
