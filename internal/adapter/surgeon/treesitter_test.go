//go:build cgo

package surgeon

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"ctxopt/internal/domain"
)

func TestPythonIgnoresCodeInStringsAndBodies(t *testing.T) {
	src := `def outer():
    """Example:

    def helper(x):
        return x
    """
    return 1

class Config:
    @property
    def name(self):
        def inner():
            pass
        return "x"
`
	out := New().Extract(LangPython, src, domain.ModeSignatures)

	assert.Equal(t, strings.Join([]string{
		"def outer()",
		"class Config",
		"    def name(self)",
	}, "\n"), out)
	assert.NotContains(t, out, "helper")
	assert.NotContains(t, out, "inner")
}

func TestPythonAllIsExport(t *testing.T) {
	src := "__all__ = [\"load\", \"save\"]\n\ndef load():\n    __all__ = []\n"
	out := New().Extract(LangPython, src, domain.ModeExportsOnly)
	assert.Equal(t, `__all__ = ["load", "save"]`, out)
}

func TestRustIgnoresRawStrings(t *testing.T) {
	src := `pub trait Store {
    fn get(&self, key: &str) -> Option<String>;
}

fn usage() -> &'static str {
    r#"
fn fake(x: i32)
"#
}

impl Store for Memory {
    fn get(&self, key: &str) -> Option<String> {
        None
    }
}
`
	s := New()
	sigs := s.Extract(LangRust, src, domain.ModeSignatures)
	assert.Equal(t, strings.Join([]string{
		"pub trait Store {\n    fn get(&self, key: &str) -> Option<String>;\n}",
		"fn usage() -> &'static str",
		"impl Store for Memory",
		"    fn get(&self, key: &str) -> Option<String>",
	}, "\n"), sigs)
	assert.NotContains(t, sigs, "fake")

	res := s.Analyze(LangRust, src)
	assert.Equal(t, 2, res.FunctionCount)
	assert.Equal(t, 1, res.TypeCount)
	assert.Equal(t, 1, res.ClassCount)
}

const javaSource = `package com.example;

import java.util.List;

@Service
public class UserService {
    private final Repo repo;

    @Inject
    public UserService(Repo repo) {
        this.repo = repo;
    }

    @Override
    public List<User> findAll(int limit,
                              boolean active) {
        String doc = "public void fake() {";
        return repo.all();
    }
}

interface Repo {
    List<User> all();
}
`

func TestJavaSignatures(t *testing.T) {
	out := New().Extract(LangJava, javaSource, domain.ModeSignatures)

	assert.Equal(t, strings.Join([]string{
		"public class UserService",
		"    public UserService(Repo repo)",
		"    public List<User> findAll(int limit, boolean active)",
		"interface Repo {\n  List<User> all();\n}",
	}, "\n"), out)
}

func TestJavaImportsAndExports(t *testing.T) {
	s := New()
	assert.Equal(t, "package com.example;\nimport java.util.List;", s.Extract(LangJava, javaSource, domain.ModeImportsOnly))
	assert.Equal(t, "public class UserService {", s.Extract(LangJava, javaSource, domain.ModeExportsOnly))
	assert.Equal(t, "interface Repo {\n  List<User> all();\n}", s.Extract(LangJava, javaSource, domain.ModeTypesOnly))
}
