package config

type WorkerKeyStruct struct {
	QuestionImportQueue string
}

var WorkerKey = &WorkerKeyStruct{
	QuestionImportQueue: "question_import_queue",
}
