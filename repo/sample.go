package repo

import (
	"context"
	"time"
)

const sampleSource = "sample"

// sampleFiles 离线模式下使用的示例仓库
var sampleFiles = []File{
	{
		Path: "app/server.py",
		Content: `from flask import Flask, jsonify, request

from app.models import User, UserRepository

app = Flask(__name__)
repo = UserRepository()


@app.route("/users", methods=["GET"])
def list_users():
    """Return all users."""
    return jsonify([u.to_dict() for u in repo.all()])


@app.route("/users", methods=["POST"])
def create_user():
    """Create a user from the JSON body."""
    payload = request.get_json()
    user = repo.add(User(payload["name"], payload["email"]))
    return jsonify(user.to_dict()), 201


@app.get("/health")
def health():
    return {"status": "ok"}
`,
	},
	{
		Path: "app/models.py",
		Content: `import uuid
from dataclasses import dataclass, field


@dataclass
class User:
    """A registered user."""

    name: str
    email: str
    id: str = field(default_factory=lambda: uuid.uuid4().hex)

    def to_dict(self):
        return {"id": self.id, "name": self.name, "email": self.email}


class UserRepository:
    """In-memory user storage."""

    def __init__(self):
        self._users = {}

    def add(self, user):
        self._users[user.id] = user
        return user

    def all(self):
        return list(self._users.values())
`,
	},
	{
		Path: "web/client.js",
		Content: `import axios from 'axios';

export class ApiClient {
  constructor(baseURL) {
    this.http = axios.create({ baseURL });
  }

  async listUsers() {
    const res = await this.http.get('/users');
    return res.data;
  }
}

export function formatUser(user) {
  return user.name + ' <' + user.email + '>';
}
`,
	},
	{
		Path: "cmd/worker/main.go",
		Content: `package main

import (
	"log"
	"time"
)

type Worker struct {
	Interval time.Duration
}

func (w *Worker) Run() {
	for range time.Tick(w.Interval) {
		log.Println("sync users")
	}
}

func main() {
	w := &Worker{Interval: time.Minute}
	w.Run()
}
`,
	},
}

// SampleFetcher 返回内置示例仓库，不访问网络
type SampleFetcher struct {
	now func() time.Time
}

// NewSampleFetcher 创建离线拉取器
func NewSampleFetcher() *SampleFetcher {
	return &SampleFetcher{now: time.Now}
}

// Fetch 返回示例快照；ref 仅用于标识
func (f *SampleFetcher) Fetch(ctx context.Context, ref Ref, _ FetchOptions) (*Snapshot, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	files := make([]File, len(sampleFiles))
	copy(files, sampleFiles)
	return &Snapshot{
		Ref:       ref,
		Branch:    "main",
		Files:     files,
		Source:    sampleSource,
		FetchedAt: f.now().UTC(),
	}, nil
}
