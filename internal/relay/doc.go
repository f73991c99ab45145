// Package relay は上流の言語モデルAPIのストリーミング応答を
// クライアント向けのServer-Sent Eventsに中継するストリームブリッジを提供する。
//
// 上流の受信はプロデューサーのgoroutineが行い、容量付きのチャネルを介して
// ハンドラのgoroutineがSSEとして書き出す。チャネルが満杯の間プロデューサーは停止し、
// クライアントの切断はcontext.Contextのキャンセルとして両者に伝わる。
package relay
