package stages

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BaSui01/docflow/workflow"
)

func TestParseJava(t *testing.T) {
	src := `package com.acme;

import org.springframework.web.bind.annotation.GetMapping;
import java.util.List;

public class UserController extends BaseController {
    @GetMapping("/users")
    public List<User> listUsers(String filter, int limit) {
        return null;
    }
}
`
	facts := parseJava("UserController.java", splitLines(src))
	require.Len(t, facts.classes, 1)
	assert.Equal(t, "UserController", facts.classes[0].Name)
	assert.Equal(t, []string{"BaseController"}, facts.classes[0].Inheritance)
	assert.Equal(t, []string{"listUsers"}, facts.classes[0].Methods)
	assert.Equal(t, []string{"org.springframework", "java.util"}, facts.imports)
	require.Len(t, facts.endpoints, 1)
	assert.Equal(t, workflow.Endpoint{Method: "GET", Path: "/users", Function: "listUsers", File: "UserController.java"}, facts.endpoints[0])
}

func TestParseGo(t *testing.T) {
	src := `package api

import "net/http"

type Server struct{}

func (s *Server) Routes(mux *http.ServeMux) {
	mux.HandleFunc("GET /items", s.list)
	mux.Handle("/static/", nil)
}

func (Server) list(w http.ResponseWriter, r *http.Request) {}

func helper[T any](v T) T { return v }

func (o *orphan) Do() {}
`
	facts := parseGo("api/server.go", splitLines(src))
	require.Len(t, facts.classes, 1)
	assert.Equal(t, []string{"Routes", "list"}, facts.classes[0].Methods)
	assert.Equal(t, []string{"helper", "orphan.Do"}, names(facts.functions, fnName))
	assert.Equal(t, []string{"v"}, facts.functions[0].Parameters)
	assert.Equal(t, []string{"net/http"}, facts.imports)

	require.Len(t, facts.endpoints, 2)
	assert.Equal(t, "GET", facts.endpoints[0].Method)
	assert.Equal(t, "/items", facts.endpoints[0].Path)
	assert.Equal(t, "ANY", facts.endpoints[1].Method)
}

func TestParseJavaScript_ExpressRoutesAndRequire(t *testing.T) {
	src := `const express = require('express');
const { helper } = require('./helper');
import { z } from '@scope/pkg/sub';

const app = express();
app.get('/items', listItems);
router.post("/items", createItem);

const handler = async (req, res) => {
  res.send('ok');
};
`
	facts := parseJavaScript("server.js", splitLines(src))
	assert.Equal(t, []string{"express", "@scope/pkg"}, facts.imports)
	assert.Equal(t, []string{"handler"}, names(facts.functions, fnName))
	assert.Equal(t, []string{"req", "res"}, facts.functions[0].Parameters)
	require.Len(t, facts.endpoints, 2)
	assert.Equal(t, workflow.Endpoint{Method: "GET", Path: "/items", Function: "listItems", File: "server.js"}, facts.endpoints[0])
	assert.Equal(t, "POST", facts.endpoints[1].Method)
}

func TestParsePython_MethodsAndParams(t *testing.T) {
	src := `from .local import thing
import os.path

class Repo(Base, Mixin):
    @staticmethod
    def build(cls, *args, name: str = "x", **kwargs):
        pass

def top(a, b=1):
    '''Top level.'''
    return a
`
	facts := parsePython("repo.py", splitLines(src))
	require.Len(t, facts.classes, 1)
	assert.Equal(t, []string{"Base", "Mixin"}, facts.classes[0].Inheritance)
	assert.Equal(t, []string{"build"}, facts.classes[0].Methods)
	require.Len(t, facts.functions, 1)
	assert.Equal(t, []string{"a", "b"}, facts.functions[0].Parameters)
	assert.Equal(t, "Top level.", facts.functions[0].Docstring)
	assert.Equal(t, []string{"os"}, facts.imports)
	assert.Empty(t, facts.endpoints)
}

func TestParseRubyAndPHP(t *testing.T) {
	rb := `require 'json'
require_relative 'lib/x'

class Greeter < Base
  def greet(name)
  end
end

def top_level
end
`
	facts := parseRuby("greeter.rb", splitLines(rb))
	require.Len(t, facts.classes, 1)
	assert.Equal(t, []string{"Base"}, facts.classes[0].Inheritance)
	assert.Equal(t, []string{"greet"}, facts.classes[0].Methods)
	assert.Equal(t, []string{"top_level"}, names(facts.functions, fnName))
	assert.Equal(t, []string{"json"}, facts.imports)

	php := `<?php
use App\Models\User;

class UserService extends Service {
    public function find($id) {}
}

function helper($a, $b) {}
`
	facts = parsePHP("service.php", splitLines(php))
	require.Len(t, facts.classes, 1)
	assert.Equal(t, []string{"find"}, facts.classes[0].Methods)
	assert.Equal(t, []string{"helper"}, names(facts.functions, fnName))
	assert.Equal(t, []string{"$a", "$b"}, facts.functions[0].Parameters)
	assert.Equal(t, []string{"App"}, facts.imports)
}
