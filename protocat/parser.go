package protocat

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// ParseFile parses one .proto file.
func ParseFile(path string) (*File, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open proto: %w", err)
	}
	defer f.Close()
	return Parse(f, path)
}

// ParseFiles parses several .proto files into an indexed catalog.
func ParseFiles(paths ...string) (*Catalog, error) {
	var files []File
	for _, p := range paths {
		pf, err := ParseFile(p)
		if err != nil {
			return nil, fmt.Errorf("parse %s: %w", p, err)
		}
		files = append(files, *pf)
	}
	return NewCatalog(files), nil
}

// ParseDir parses every .proto file under dir.
func ParseDir(dir string) (*Catalog, error) {
	var paths []string
	err := filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if !info.IsDir() && strings.HasSuffix(path, ".proto") {
			paths = append(paths, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk %s: %w", dir, err)
	}
	return ParseFiles(paths...)
}

// Parse parses proto3 text from r. This is a line-oriented parser covering
// the subset the catalog needs: package, go_package, imports, services with
// rpc methods, messages with scalar/message/map fields.
func Parse(r io.Reader, filename string) (*File, error) {
	content, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read proto: %w", err)
	}

	pf := &File{Path: filename}

	var curMsg *Message
	var curSvc *Service
	var msgDepth, svcDepth int

	for _, raw := range strings.Split(string(content), "\n") {
		line := strings.TrimSpace(raw)
		if line == "" || strings.HasPrefix(line, "//") {
			continue
		}
		if i := strings.Index(line, "//"); i >= 0 {
			line = strings.TrimSpace(line[:i])
		}

		open := strings.Count(line, "{")
		clos := strings.Count(line, "}")

		switch {
		case strings.HasPrefix(line, "package "):
			pf.Package = between(line, "package ", ";")
			continue
		case strings.Contains(line, "option go_package"):
			pf.GoPackage = quoted(line)
			continue
		case strings.HasPrefix(line, "import "):
			if imp := quoted(line); imp != "" {
				pf.Imports = append(pf.Imports, imp)
			}
			continue
		}

		if curMsg == nil && curSvc == nil {
			if strings.HasPrefix(line, "message ") && strings.Contains(line, "{") {
				name := between(line, "message ", "{")
				m := Message{Name: name, Package: pf.Package, FullName: fullName(pf.Package, name)}
				if strings.HasSuffix(line, "}") {
					pf.Messages = append(pf.Messages, m)
					continue
				}
				curMsg = &m
				msgDepth = 1
				continue
			}
			if strings.HasPrefix(line, "service ") && strings.Contains(line, "{") {
				name := between(line, "service ", "{")
				s := Service{Name: name, Package: pf.Package, FullName: fullName(pf.Package, name)}
				if strings.HasSuffix(line, "}") {
					pf.Services = append(pf.Services, s)
					continue
				}
				curSvc = &s
				svcDepth = 1
				continue
			}
			continue
		}

		if curMsg != nil {
			msgDepth += open - clos
			if msgDepth <= 0 {
				pf.Messages = append(pf.Messages, *curMsg)
				curMsg = nil
				continue
			}
			// Nested message/enum bodies are skipped; only depth-1 fields
			// matter for matching.
			if msgDepth == 1 && !strings.HasPrefix(line, "message ") && !strings.HasPrefix(line, "enum ") && !strings.HasPrefix(line, "oneof ") {
				if f, ok := parseField(line); ok {
					curMsg.Fields = append(curMsg.Fields, f)
				}
			}
			continue
		}

		if curSvc != nil {
			svcDepth += open - clos
			if svcDepth <= 0 {
				pf.Services = append(pf.Services, *curSvc)
				curSvc = nil
				continue
			}
			if strings.HasPrefix(line, "rpc ") {
				if m, ok := parseRPC(line, curSvc.Name); ok {
					curSvc.Methods = append(curSvc.Methods, m)
				}
			}
		}
	}

	return pf, nil
}

func parseField(line string) (Field, bool) {
	line = strings.TrimSuffix(strings.TrimSpace(line), ";")
	if line == "" || line == "}" {
		return Field{}, false
	}

	var f Field
	if strings.HasPrefix(line, "optional ") {
		f.Optional = true
		line = strings.TrimPrefix(line, "optional ")
	}
	if strings.HasPrefix(line, "repeated ") {
		f.Repeated = true
		line = strings.TrimPrefix(line, "repeated ")
	}

	if strings.HasPrefix(line, "map<") {
		end := strings.Index(line, ">")
		if end < 0 {
			return Field{}, false
		}
		f.IsMap = true
		kv := strings.SplitN(line[4:end], ",", 2)
		if len(kv) == 2 {
			f.MapKey = strings.TrimSpace(kv[0])
			f.MapValue = strings.TrimSpace(kv[1])
		}
		rest := strings.Fields(line[end+1:])
		if len(rest) >= 3 && rest[1] == "=" {
			f.Name = rest[0]
			f.Number = atoiDefault(rest[2], 0)
			return f, true
		}
		return Field{}, false
	}

	parts := strings.Fields(line)
	if len(parts) < 4 || parts[2] != "=" {
		return Field{}, false
	}
	f.Type = parts[0]
	f.Name = parts[1]
	f.Number = atoiDefault(parts[3], 0)
	f.Message = !IsScalar(f.Type)
	return f, true
}

func parseRPC(line, serviceName string) (Method, bool) {
	// rpc Name(Request) returns (Response) {} | ;
	body := strings.TrimPrefix(line, "rpc ")
	body = strings.TrimSuffix(strings.TrimSuffix(strings.TrimSpace(body), "{}"), ";")
	body = strings.TrimSpace(body)

	paren := strings.Index(body, "(")
	if paren < 0 {
		return Method{}, false
	}
	m := Method{
		Name: strings.TrimSpace(body[:paren]),
	}
	m.FullName = serviceName + "." + m.Name

	retIdx := strings.Index(body, "returns")
	reqPart := body
	if retIdx >= 0 {
		reqPart = body[:retIdx]
	}
	if req := parenArg(reqPart); req != "" {
		if strings.HasPrefix(req, "stream ") {
			m.ClientStreaming = true
			req = strings.TrimPrefix(req, "stream ")
		}
		m.RequestType = strings.TrimSpace(req)
	}
	if retIdx >= 0 {
		if resp := parenArg(body[retIdx:]); resp != "" {
			if strings.HasPrefix(resp, "stream ") {
				m.ServerStreaming = true
				resp = strings.TrimPrefix(resp, "stream ")
			}
			m.ResponseType = strings.TrimSpace(resp)
		}
	}
	return m, m.Name != ""
}

func parenArg(s string) string {
	a := strings.Index(s, "(")
	b := strings.Index(s, ")")
	if a < 0 || b <= a {
		return ""
	}
	return strings.TrimSpace(s[a+1 : b])
}

func between(line, prefix, suffix string) string {
	line = strings.TrimPrefix(line, prefix)
	if i := strings.Index(line, suffix); i >= 0 {
		line = line[:i]
	}
	return strings.TrimSpace(line)
}

func quoted(line string) string {
	a := strings.Index(line, `"`)
	b := strings.LastIndex(line, `"`)
	if a < 0 || b <= a {
		return ""
	}
	return line[a+1 : b]
}

func fullName(pkg, name string) string {
	if pkg == "" {
		return name
	}
	return pkg + "." + name
}

func atoiDefault(s string, def int) int {
	n, err := strconv.Atoi(strings.TrimSuffix(strings.TrimSpace(s), ";"))
	if err != nil {
		return def
	}
	return n
}
