package config

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// ErrNoRoutes is returned when a route file parses but defines nothing to forward
var ErrNoRoutes = errors.New("no routes defined")

// Route is one forwarding rule: connections accepted on Source are piped to Destination
type Route struct {
	Source      string `yaml:"source" json:"source"`
	Destination string `yaml:"destination" json:"destination"`
}

// String renders the route the way it appears in log lines
func (r Route) String() string {
	return r.Source + " -> " + r.Destination
}

// Validate checks that both ends are host:port addresses
func (r Route) Validate() error {
	if err := ValidateAddress(r.Source); err != nil {
		return fmt.Errorf("source %q: %w", r.Source, err)
	}
	if err := ValidateAddress(r.Destination); err != nil {
		return fmt.Errorf("destination %q: %w", r.Destination, err)
	}
	return nil
}

// ValidateAddress checks that addr is a host:port pair with a non-empty port
func ValidateAddress(addr string) error {
	_, port, err := net.SplitHostPort(addr)
	if err != nil {
		return err
	}
	if port == "" {
		return fmt.Errorf("missing port in address %s", addr)
	}
	return nil
}

// DefaultRoutesPath returns ~/.proxy/config
func DefaultRoutesPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to locate home directory: %w", err)
	}
	return filepath.Join(home, ".proxy", "config"), nil
}

// ResolveRoutesPath picks the route file: the first non-empty candidate wins,
// falling back to DefaultRoutesPath
func ResolveRoutesPath(candidates ...string) (string, error) {
	for _, c := range candidates {
		if c != "" {
			return c, nil
		}
	}
	return DefaultRoutesPath()
}

// LoadRoutes reads a route file. Files ending in .yaml or .yml are parsed as
// YAML, everything else uses the line format.
func LoadRoutes(path string) ([]Route, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open route file: %w", err)
	}
	defer func() {
		_ = f.Close()
	}()

	var routes []Route
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		routes, err = ParseYAMLRoutes(f)
	default:
		routes, err = ParseRoutes(f)
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return routes, nil
}

// ParseRoutes reads the line format: one "source destination" pair per line.
// Blank lines and lines starting with # are ignored.
func ParseRoutes(r io.Reader) ([]Route, error) {
	var routes []Route

	scanner := bufio.NewScanner(r)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		fields := strings.Fields(line)
		if len(fields) != 2 {
			return nil, fmt.Errorf("line %d: expected \"source destination\", got %q", lineNo, line)
		}

		route := Route{Source: fields[0], Destination: fields[1]}
		if err := route.Validate(); err != nil {
			return nil, fmt.Errorf("line %d: %w", lineNo, err)
		}
		routes = append(routes, route)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read routes: %w", err)
	}

	if len(routes) == 0 {
		return nil, ErrNoRoutes
	}
	return routes, nil
}

type yamlRoutes struct {
	Routes []Route `yaml:"routes"`
}

// ParseYAMLRoutes reads a document of the form
//
//	routes:
//	  - source: 127.0.0.1:9000
//	    destination: 127.0.0.1:9100
func ParseYAMLRoutes(r io.Reader) ([]Route, error) {
	var doc yamlRoutes
	if err := yaml.NewDecoder(r).Decode(&doc); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, ErrNoRoutes
		}
		return nil, fmt.Errorf("failed to parse yaml routes: %w", err)
	}

	for i, route := range doc.Routes {
		if err := route.Validate(); err != nil {
			return nil, fmt.Errorf("route %d: %w", i+1, err)
		}
	}

	if len(doc.Routes) == 0 {
		return nil, ErrNoRoutes
	}
	return doc.Routes, nil
}
