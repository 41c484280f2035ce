// Command importngram builds a Bigram Store bbolt file from a
// plain-text n-gram stream, adapting the teacher's cmd/compile (which
// built a gob-encoded fslm.Model from an ARPA stream) to the pinyin
// bigram schema.
//
// Input format, one record per line: "prev\tcur\tcount", where prev
// and cur are decimal Token values and count is the training count.
// A "prev\t\ttotal" line (cur column empty) sets prev's total; a prev
// given no such line is stored with a total of 0 (the total is not
// derived from its entries).
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

// Config is the importngram tool's TOML configuration, following the
// same constructor-function convention as the rest of SPEC_FULL.md's
// ambient stack.
type Config struct {
	OutputPath string `toml:"output_path"`
}

func loadConfig(path string) (Config, error) {
	var cfg Config
	if path == "" {
		return cfg, nil
	}
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return Config{}, fmt.Errorf("loadConfig: %w", err)
	}
	return cfg, nil
}

func main() {
	configPath := flag.String("config", "", "path to a TOML config file")
	outFlag := flag.String("out", "", "path to the bigram store bbolt file (overrides config)")
	flag.Parse()

	cfg, err := loadConfig(*configPath)
	if err != nil {
		glog.Fatal(err)
	}
	out := cfg.OutputPath
	if *outFlag != "" {
		out = *outFlag
	}
	if out == "" {
		glog.Fatal("no output path given (use -out or config.output_path)")
	}

	db, err := pinyin.Attach(out, pinyin.AttachCreate)
	if err != nil {
		glog.Fatalf("attaching bigram store at %s: %v", out, err)
	}
	defer db.Close()

	grams := make(map[pinyin.Token]*pinyin.SingleGram)
	get := func(prev pinyin.Token) *pinyin.SingleGram {
		g, ok := grams[prev]
		if !ok {
			g = pinyin.NewSingleGram()
			grams[prev] = g
		}
		return g
	}

	scanner := bufio.NewScanner(os.Stdin)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		fields := strings.Split(scanner.Text(), "\t")
		if len(fields) != 3 {
			glog.Warningf("line %d: expected 3 tab-separated fields, got %d; skipping", lineNo, len(fields))
			continue
		}
		prev, err := parseToken(fields[0])
		if err != nil {
			glog.Warningf("line %d: bad prev token: %v", lineNo, err)
			continue
		}
		count, err := strconv.ParseUint(fields[2], 10, 32)
		if err != nil {
			glog.Warningf("line %d: bad count: %v", lineNo, err)
			continue
		}
		g := get(prev)
		if fields[1] == "" {
			g.SetTotalFreq(uint32(count))
			continue
		}
		cur, err := parseToken(fields[1])
		if err != nil {
			glog.Warningf("line %d: bad cur token: %v", lineNo, err)
			continue
		}
		if err := g.InsertFreq(cur, uint32(count)); err != nil {
			glog.Warningf("line %d: duplicate (prev, cur) pair, skipping: %v", lineNo, err)
		}
	}
	if err := scanner.Err(); err != nil {
		glog.Fatal("reading n-gram stream: ", err)
	}

	for prev, g := range grams {
		if err := db.Store(prev, g); err != nil {
			glog.Fatalf("storing single-gram for %v: %v", prev, err)
		}
	}
	glog.Infof("imported %d single-gram rows into %s", len(grams), out)
}

func parseToken(s string) (pinyin.Token, error) {
	v, err := strconv.ParseUint(s, 10, 32)
	if err != nil {
		return 0, err
	}
	return pinyin.Token(v), nil
}
