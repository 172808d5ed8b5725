package rag

// reformulatePrompt instructs the model to rewrite the latest question into a
// standalone one without answering it.
const reformulatePrompt = "Dada una historia de chat (si existe) y la última pregunta del usuario, " +
	"formula una pregunta clara y coherente que represente adecuadamente lo que el usuario está buscando. " +
	"Si la pregunta ya está formulada de manera adecuada, devuélvela tal cual, sin cambios. " +
	"Si la pregunta necesita ajustes, reformúlala para hacerla más precisa o clara, " +
	"pero no respondas la pregunta ni des ningún tipo de explicación, solo reformúlala si es necesario."

// NoAnswer is the fixed reply when neither context nor history answers the question.
const NoAnswer = "Lo siento, no sé la respuesta a esa pregunta. Intenta volviendo a cargar el link de la noticia"

// answerPrompt is the system instruction for the answer call; the retrieved
// context is appended after it.
const answerPrompt = "Eres un asistente encargado de responder preguntas utilizando contexto relevante. " +
	"Para cada noticia que se te presente, muestra la siguiente información de manera ordenada para las dos primeras noticias: \n" +
	"- Título\n" +
	"- Fecha\n" +
	"- Autor\n" +
	"- Contenido\n" +
	"- Enlace\n\n" +
	"Si la respuesta está claramente indicada en el contexto, proporciónala de manera directa. " +
	"Si el contexto no proporciona una respuesta completa, completa la información con el historial de chat si es relevante. " +
	"Si no puedes encontrar la respuesta en ninguno de estos, responde de manera educada diciendo: " +
	"\"" + NoAnswer + "\" " +
	"Asegúrate de dar una respuesta concisa, clara, en español. " +
	"Si la respuesta involucra detalles específicos, proporciónalos de manera ordenada y comprensible, " +
	"sin agregar información innecesaria ni suposiciones.\n\n"

// contextSeparator joins retrieved chunks in the answer prompt.
const contextSeparator = "\n\n"
