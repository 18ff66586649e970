package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"rigsim.ai/internal/protocol"
)

// call sends one admin request and returns the response body.
func call(cl *http.Client, method, baseURL, path string, body any) ([]byte, int, error) {
	u := strings.TrimRight(strings.TrimSpace(baseURL), "/") + path
	var rd io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return nil, 0, err
		}
		rd = bytes.NewReader(b)
	}
	req, err := http.NewRequest(method, u, rd)
	if err != nil {
		return nil, 0, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := cl.Do(req)
	if err != nil {
		return nil, 0, err
	}
	defer resp.Body.Close()
	b, err := io.ReadAll(resp.Body)
	return b, resp.StatusCode, err
}

func run(method, baseURL, path string, body any, timeout time.Duration) {
	b, status, err := call(&http.Client{Timeout: timeout}, method, baseURL, path, body)
	if err != nil {
		fail("request:", err)
	}
	fmt.Println(strings.TrimSpace(string(b)))
	if status/100 != 2 {
		os.Exit(1)
	}
}

func stateCmd(args []string) {
	fs := flag.NewFlagSet("state", flag.ExitOnError)
	baseURL := fs.String("url", "http://127.0.0.1:8080", "server base url")
	_ = fs.Parse(args)
	run(http.MethodGet, *baseURL, "/admin/v1/state", nil, 5*time.Second)
}

func snapshotCmd(args []string) {
	fs := flag.NewFlagSet("snapshot", flag.ExitOnError)
	baseURL := fs.String("url", "http://127.0.0.1:8080", "server base url")
	_ = fs.Parse(args)
	run(http.MethodPost, *baseURL, "/admin/v1/snapshot", nil, 10*time.Second)
}

func spawnCmd(args []string) {
	fs := flag.NewFlagSet("spawn", flag.ExitOnError)
	baseURL := fs.String("url", "http://127.0.0.1:8080", "server base url")
	name := fs.String("blueprint", "", "blueprint id from the server's library")
	file := fs.String("file", "", "blueprint file to send inline")
	id := fs.String("id", "", "assembly id (default: blueprint id)")
	_ = fs.Parse(args)

	body := map[string]any{"id": *id}
	switch {
	case *file != "":
		raw, err := os.ReadFile(*file)
		if err != nil {
			fail("read blueprint:", err)
		}
		body["definition"] = json.RawMessage(raw)
	case *name != "":
		body["blueprint"] = *name
	default:
		fmt.Fprintln(os.Stderr, "missing -blueprint or -file")
		os.Exit(2)
	}
	run(http.MethodPost, *baseURL, "/admin/v1/spawn", body, 10*time.Second)
}

func despawnCmd(args []string) {
	fs := flag.NewFlagSet("despawn", flag.ExitOnError)
	baseURL := fs.String("url", "http://127.0.0.1:8080", "server base url")
	id := fs.String("id", "", "assembly id")
	_ = fs.Parse(args)
	if strings.TrimSpace(*id) == "" {
		fmt.Fprintln(os.Stderr, "missing -id")
		os.Exit(2)
	}
	run(http.MethodPost, *baseURL, "/admin/v1/despawn", map[string]string{"id": *id}, 10*time.Second)
}

func commandCmd(args []string) {
	fs := flag.NewFlagSet("cmd", flag.ExitOnError)
	baseURL := fs.String("url", "http://127.0.0.1:8080", "server base url")
	var c protocol.Command
	fs.StringVar(&c.Kind, "kind", "", "command kind (IGNITION, THROTTLE, ...)")
	fs.StringVar(&c.Assembly, "assembly", "", "assembly id")
	fs.StringVar(&c.Part, "part", "", "part id")
	fs.StringVar(&c.PartB, "part_b", "", "second part id (CONNECT)")
	fs.StringVar(&c.Joint, "joint", "", "joint id")
	fs.StringVar(&c.JointKind, "joint_kind", "", "joint kind (CONNECT)")
	fs.BoolVar(&c.On, "on", false, "on/off flag")
	fs.Float64Var(&c.Value, "value", 0, "scalar value")
	fs.Float64Var(&c.Force, "force", 0, "force (SET_LOAD)")
	fs.Float64Var(&c.Torque, "torque", 0, "torque (SET_LOAD)")
	fs.StringVar(&c.Reason, "reason", "", "reason (REPORT_FATAL)")
	_ = fs.Parse(args)
	if c.Kind == "" || c.Assembly == "" {
		fmt.Fprintln(os.Stderr, "missing -kind or -assembly")
		os.Exit(2)
	}
	c.Kind = strings.ToUpper(c.Kind)
	run(http.MethodPost, *baseURL, "/admin/v1/command", c, 10*time.Second)
}
