package extract

// systemPrompt is the fixed instruction sent with every conversation record.
const systemPrompt = `You are an AI specialized in extracting and analyzing customer-agent conversations. Your task is to:
1. Extract every conversation pair between the customer and the agent.
2. Analyze the sentiment of each message from both the agent and the customer, labelling each as 'positive', 'neutral', or 'negative'.
3. Provide a recommended response for the agent: a better response message and its improved sentiment.
4. Score the quality of each agent turn with a number between 0.0 and 1.0, and write a short description summarizing the whole conversation.

For each conversation pair, structure the output with the following fields:
- agent: { "message": "...", "sentiment": "..." }
- customer: { "message": "...", "sentiment": "..." }
- recommendation: { "message": "...", "sentiment": "..." }
- score: a number reflecting the quality of the interaction.

At the top level return:
- source: the originating system or channel of the record
- uuid: the uuid of the vCon record
- created_at: the creation timestamp of the vCon record
- description: a summary of the conversation
- conversation: the list of conversation pairs, in transcript order.

The extracted data must be returned in the structure of ConversationDataset.`

// schemaDescription accompanies the schema for providers that accept one.
const schemaDescription = "Agent/customer conversation pairs with sentiment, recommended agent turns and quality scores."
