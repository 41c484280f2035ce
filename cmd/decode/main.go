// Command decode is a small REPL that loads a Facade Phrase Index, a
// Bigram Store, and a phonetic-index mapping file, then decodes pinyin
// lines read from stdin, adapting the teacher's cmd/score (which
// scored a corpus against an fslm.Model) into an interactive decode
// loop against the pinyin core.
package main

import (
	"bufio"
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/golang/glog"

	"github.com/kho/pinyin"
)

// Config is decode's TOML configuration: one Sub-Phrase Index image
// path per library, the system (and optional user) bigram store
// paths, the phonetic-index mapping file, and the decoder's mixture
// weight.
type Config struct {
	Libraries     map[string]string `toml:"libraries"` // library id (as string) -> sub-index image path
	SystemBigram  string            `toml:"system_bigram"`
	UserBigram    string            `toml:"user_bigram"`
	PhoneticTable string            `toml:"phonetic_table"`
	Lambda        float64           `toml:"lambda"`
	BeamWidth     int               `toml:"beam_width"`
}

func loadConfig(path string) (Config, error) {
	cfg := Config{Lambda: 0.5, BeamWidth: pinyin.DefaultBeamWidth}
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return Config{}, fmt.Errorf("loadConfig: %w", err)
	}
	return cfg, nil
}

func buildFacade(cfg Config) (*pinyin.FacadePhraseIndex, error) {
	facade := pinyin.NewFacadePhraseIndex()
	for libStr, path := range cfg.Libraries {
		lib, err := strconv.ParseUint(libStr, 10, 8)
		if err != nil {
			return nil, fmt.Errorf("library id %q: %w", libStr, err)
		}
		sub := pinyin.NewSubPhraseIndex()
		if err := sub.Load(path); err != nil {
			return nil, fmt.Errorf("loading library %d from %s: %w", lib, path, err)
		}
		if err := facade.LoadLibrary(uint8(lib), sub); err != nil {
			return nil, fmt.Errorf("LoadLibrary(%d): %w", lib, err)
		}
	}
	return facade, nil
}

func buildBigram(cfg Config) (*pinyin.BigramStore, error) {
	store := &pinyin.BigramStore{}
	if cfg.SystemBigram != "" {
		sys, err := pinyin.Attach(cfg.SystemBigram, pinyin.AttachReadOnly)
		if err != nil {
			return nil, fmt.Errorf("attaching system bigram: %w", err)
		}
		store.System = sys
	}
	if cfg.UserBigram != "" {
		usr, err := pinyin.Attach(cfg.UserBigram, pinyin.AttachReadWrite)
		if err != nil {
			return nil, fmt.Errorf("attaching user bigram: %w", err)
		}
		store.User = usr
	}
	return store, nil
}

// parseSyllable parses one "initial:final:tone" triple.
func parseSyllable(s string) (pinyin.SyllableKey, error) {
	parts := strings.Split(s, ":")
	if len(parts) != 3 {
		return 0, fmt.Errorf("expected initial:final:tone, got %q", s)
	}
	var v [3]uint64
	for i, p := range parts {
		n, err := strconv.ParseUint(p, 10, 8)
		if err != nil {
			return 0, fmt.Errorf("field %d of %q: %w", i, s, err)
		}
		v[i] = n
	}
	return pinyin.NewSyllableKey(uint8(v[0]), uint8(v[1]), uint8(v[2])), nil
}

func parseSyllables(s string) ([]pinyin.SyllableKey, error) {
	fields := strings.Split(s, ";")
	keys := make([]pinyin.SyllableKey, len(fields))
	for i, f := range fields {
		k, err := parseSyllable(f)
		if err != nil {
			return nil, err
		}
		keys[i] = k
	}
	return keys, nil
}

func parseToken(s string) (pinyin.Token, error) {
	v, err := strconv.ParseUint(s, 10, 32)
	if err != nil {
		return 0, err
	}
	return pinyin.Token(v), nil
}

// loadPhoneticTable reads a text phonetic-index mapping: each line is
// "syllables\tlibrary\tbegin\tend" where syllables is a ';'-joined run
// of "initial:final:tone" triples and begin/end are decimal in-library
// ids (exclusive end), building the external phonetic->token index the
// core consumes as a boundary (spec.md §6).
func loadPhoneticTable(path string) (*pinyin.MapPhoneticIndex, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	idx := pinyin.NewMapPhoneticIndex()
	scanner := bufio.NewScanner(f)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := scanner.Text()
		if line == "" {
			continue
		}
		fields := strings.Split(line, "\t")
		if len(fields) != 4 {
			glog.Warningf("phonetic table line %d: expected 4 fields, got %d", lineNo, len(fields))
			continue
		}
		keys, err := parseSyllables(fields[0])
		if err != nil {
			glog.Warningf("phonetic table line %d: %v", lineNo, err)
			continue
		}
		lib, err := strconv.ParseUint(fields[1], 10, 8)
		if err != nil {
			glog.Warningf("phonetic table line %d: bad library: %v", lineNo, err)
			continue
		}
		begin, err := parseToken(fields[2])
		if err != nil {
			glog.Warningf("phonetic table line %d: bad begin: %v", lineNo, err)
			continue
		}
		end, err := parseToken(fields[3])
		if err != nil {
			glog.Warningf("phonetic table line %d: bad end: %v", lineNo, err)
			continue
		}
		idx.Add(keys, uint8(lib), pinyin.TokenRange{Begin: begin, End: end})
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return idx, nil
}

func main() {
	configPath := flag.String("config", "", "path to a TOML config file")
	flag.Parse()
	if *configPath == "" {
		glog.Fatal("usage: decode -config=<path>")
	}

	cfg, err := loadConfig(*configPath)
	if err != nil {
		glog.Fatal(err)
	}
	facade, err := buildFacade(cfg)
	if err != nil {
		glog.Fatal(err)
	}
	bigram, err := buildBigram(cfg)
	if err != nil {
		glog.Fatal(err)
	}
	if bigram.System != nil {
		defer bigram.System.Close()
	}
	if bigram.User != nil {
		defer bigram.User.Close()
	}
	phonetic, err := loadPhoneticTable(cfg.PhoneticTable)
	if err != nil {
		glog.Fatal("loading phonetic table: ", err)
	}

	decoder := pinyin.NewDecoder(phonetic, facade, bigram, cfg.Lambda)
	decoder.SetBeamWidth(cfg.BeamWidth)

	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		keys, err := parseSyllables(line)
		if err != nil {
			fmt.Printf("error: %v\n", err)
			continue
		}
		ok, results := decoder.GetBestMatch([]pinyin.Token{pinyin.SentenceStart}, keys, nil, 0)
		if !ok {
			fmt.Println("(no match)")
			continue
		}
		fmt.Println(pinyin.ConvertToUTF8(facade, results, ""))
	}
	if err := scanner.Err(); err != nil {
		glog.Fatal("reading stdin: ", err)
	}
}
