package harness

import (
	"strings"

	pkgerrors "codearena/pkg/errors"
)

// deniedTokens are substrings tied to process spawning, early process exit, dynamic
// evaluation or raw file access in one of the supported languages. Matching is plain
// substring search, so "exit(" also covers sys.exit(, process.exit( and std::exit(.
var deniedTokens = []string{
	// python
	"import os", "from os", "import subprocess", "from subprocess", "import shutil", "import socket",
	"__import__", "eval(", "exec(", "open(", "importlib", "sys.exit", "exit(", "quit(", "SystemExit",
	// javascript
	"child_process", "require('fs')", `require("fs")`, "require('net')", `require("net")`,
	"process.exit", "process.binding", "new Function",
	// java
	"Runtime.getRuntime", "ProcessBuilder", "java.io.File", "java.nio.file", "System.exit",
	"FileInputStream", "FileOutputStream", "ClassLoader",
	// c++
	"system(", "popen(", "fork(", "execv", "execl", "<fstream>", "fopen(", "<unistd.h>", "asm(", "__asm__",
	"abort(", "_Exit(", "terminate(",
}

// IsAllowed reports whether code is non-blank and free of denied tokens.
// It is a coarse filter only; isolation is the execution backend's job.
func IsAllowed(code string) bool {
	return CheckContent(code) == nil
}

// CheckContent returns a CodeRejected error naming the first denied token found.
func CheckContent(code string) error {
	if strings.TrimSpace(code) == "" {
		return pkgerrors.ValidationError("code", "must not be empty")
	}
	for _, token := range deniedTokens {
		if strings.Contains(code, token) {
			return pkgerrors.Newf(pkgerrors.CodeRejected, "code contains forbidden construct %q", token).
				WithDetail("token", token)
		}
	}
	return nil
}
