package correlation

// DomainVocabulary backs the expertise detector: term hits across indexed
// content are tallied per domain. Terms are matched as whole words,
// case-insensitive.
var DomainVocabulary = map[string][]string{
	"devops": {
		"docker", "kubernetes", "terraform", "ansible", "ci", "cd",
		"pipeline", "deployment", "helm", "prometheus", "grafana",
		"monitoring", "rollback", "canary",
	},
	"web development": {
		"react", "vue", "angular", "css", "html", "javascript", "typescript",
		"frontend", "backend", "api", "rest", "graphql", "webpack", "vite",
	},
	"data engineering": {
		"etl", "pipeline", "kafka", "spark", "airflow", "warehouse",
		"ingestion", "schema", "parquet", "batch", "streaming", "dbt",
	},
	"machine learning": {
		"model", "training", "embedding", "inference", "dataset", "pytorch",
		"tensorflow", "fine-tuning", "transformer", "llm", "prompt",
		"classifier", "regression",
	},
	"databases": {
		"sql", "postgres", "postgresql", "mysql", "sqlite", "index",
		"transaction", "query", "migration", "replication", "shard",
		"mongodb", "redis",
	},
	"security": {
		"authentication", "authorization", "encryption", "tls", "certificate",
		"vulnerability", "exploit", "audit", "oauth", "jwt", "firewall",
		"pentest",
	},
	"systems programming": {
		"memory", "concurrency", "goroutine", "mutex", "syscall", "kernel",
		"allocation", "profiling", "latency", "throughput", "lock",
	},
}

// techCategories groups TECH entities for the tech-stack detector.
var techCategories = map[string][]string{
	"languages": {
		"go", "golang", "python", "rust", "java", "javascript", "typescript",
		"ruby", "kotlin", "swift", "scala", "elixir", "haskell", "clojure",
		"c++", "c#",
	},
	"frameworks": {
		"react", "vue", "angular", "svelte", "django", "flask", "fastapi",
		"rails", "spring", "express", "nextjs", "gin", "echo",
	},
	"infrastructure": {
		"docker", "kubernetes", "k8s", "terraform", "ansible", "nginx",
		"apache", "linux", "systemd", "helm", "vault", "consul",
	},
	"cloud": {
		"aws", "azure", "gcp", "lambda", "ec2", "s3", "cloudflare", "heroku",
		"vercel", "netlify",
	},
	"databases": {
		"postgresql", "postgres", "mysql", "sqlite", "mongodb", "redis",
		"elasticsearch", "cassandra", "dynamodb", "clickhouse", "surrealdb",
	},
	"tools": {
		"git", "github", "gitlab", "jenkins", "grafana", "prometheus",
		"kafka", "rabbitmq", "graphql", "grpc", "webpack", "vite", "jira",
		"figma", "ollama",
	},
}
