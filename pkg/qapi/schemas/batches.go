package schemas

// BatchSummary is one row of the batch list.
type BatchSummary struct {
	ID          string `json:"id" doc:"Batch ID (UUIDv7)"`
	Label       string `json:"label" doc:"Output directory label"`
	Gene        string `json:"gene" doc:"Exposure gene"`
	Backend     string `json:"backend" doc:"Backend used (local, docker, k8s, dry-run)"`
	Policy      string `json:"policy" doc:"Failure policy (ignore, halt, retry)"`
	StartedAt   string `json:"started_at" doc:"Start timestamp"`
	FinishedAt  string `json:"finished_at,omitempty" doc:"Finish timestamp"`
	Total       int    `json:"total" doc:"Number of invocations dispatched"`
	Succeeded   int    `json:"succeeded" doc:"Invocations that exited zero"`
	Failed      int    `json:"failed" doc:"Invocations that failed"`
	Error       string `json:"error,omitempty" doc:"Why the batch stopped early"`
	OutputDir   string `json:"output_dir" doc:"Output directory"`
}

// InvocationResponse is one smr command and what happened to it.
type InvocationResponse struct {
	Seq        int      `json:"seq" doc:"Dispatch order within the batch"`
	SNP        string   `json:"snp" doc:"Target SNP"`
	Outcome    string   `json:"outcome" doc:"GWAS summary path"`
	OutPrefix  string   `json:"out_prefix" doc:"Output prefix passed to smr"`
	Command    []string `json:"command" doc:"Full argv"`
	Status     string   `json:"status" doc:"succeeded, failed or cancelled"`
	ExitCode   int      `json:"exit_code" doc:"Process exit code"`
	Attempts   int      `json:"attempts" doc:"Dispatch attempts"`
	StartedAt  string   `json:"started_at,omitempty" doc:"Start timestamp"`
	DurationMs int64    `json:"duration_ms" doc:"Wall time in milliseconds"`
	Error      string   `json:"error,omitempty" doc:"Dispatch error"`
	Stderr     string   `json:"stderr,omitempty" doc:"Tail of stderr"`
}

// JobResponse echoes the job definition.
type JobResponse struct {
	Gene  string   `json:"gene"`
	BFile string   `json:"bfile"`
	SNPs  []string `json:"snps"`
	Probe string   `json:"probe,omitempty"`
	EQTL  string   `json:"eqtl"`
	Label string   `json:"label"`
}

// BatchResponse is a full batch report.
type BatchResponse struct {
	BatchSummary
	Job         JobResponse          `json:"job" doc:"Job definition"`
	Invocations []InvocationResponse `json:"invocations" doc:"Invocations in dispatch order"`
}

// BatchArtifact is an uploaded output file.
type BatchArtifact struct {
	Key         string `json:"key" doc:"Storage key"`
	Filename    string `json:"filename" doc:"File name within the output directory"`
	Size        int64  `json:"size" doc:"Size in bytes"`
	ContentType string `json:"content_type" doc:"MIME type"`
	URL         string `json:"url,omitempty" doc:"Download URL (presigned)"`
}
